package host

import (
	"context"
	"errors"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/snowmerak/hubplug/lib/host Backend

// Backend is the device database a Host serves plugin requests from. The
// plugin argument is the Host's Name; devices are scoped to their plugin.
type Backend interface {
	SetPluginState(ctx context.Context, plugin string, state protocol.PluginState, messageID string, data *datacontainer.Container) error

	DeclareDevice(ctx context.Context, plugin, device, model string, keywords []protocol.Historizable, details *datacontainer.Container) error
	DeclareKeyword(ctx context.Context, plugin, device string, keyword protocol.Historizable, details *datacontainer.Container) error
	DeviceExists(ctx context.Context, plugin, device string) (bool, error)
	DeviceDetails(ctx context.Context, plugin, device string) (*datacontainer.Container, error)
	KeywordExists(ctx context.Context, plugin, device, keyword string) (bool, error)

	Historize(ctx context.Context, plugin, device string, values []protocol.HistorizedValue) error

	RecipientValue(ctx context.Context, recipientID int32, field string) (string, error)
	FindRecipientsFromField(ctx context.Context, field, expected string) ([]int32, error)
	RecipientFieldExists(ctx context.Context, field string) (bool, error)

	Configuration(ctx context.Context, plugin string) (*datacontainer.Container, error)
}

var (
	// ErrUnknownDevice is returned for a device that was never declared.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownKeyword is returned for a keyword the device does not have.
	ErrUnknownKeyword = errors.New("unknown keyword")

	// ErrUnknownRecipient is returned for a recipient id or field that does not exist.
	ErrUnknownRecipient = errors.New("unknown recipient")
)
