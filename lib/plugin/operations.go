// Package plugin provides the outbound operations of the plugin API.
//
// Fire-and-forget operations write one message. The others send a request and
// wait for the matching answer through the single correlation slot.
package plugin

import (
	"context"
	"fmt"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/historization"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// SetPluginState reports state to the host. customMessageID and customData
// describe the state for StateCustom and StateError and may be empty.
func (a *API) SetPluginState(ctx context.Context, state protocol.PluginState, customMessageID string, customData map[string]string) error {
	const op = "setPluginState"
	if !state.Valid() {
		return opError(op, fmt.Errorf("%w: plugin state %d", protocol.ErrInvalidEnumValue, int32(state)), state, customMessageID)
	}

	m := protocol.SetPluginState{State: state, CustomMessageID: customMessageID}
	if len(customData) > 0 {
		m.CustomMessageData = datacontainer.FromStrings(customData).Serialize()
	}
	return opError(op, a.send(ctx, m), state, customMessageID)
}

// DeviceExists asks the host whether device is declared.
func (a *API) DeviceExists(ctx context.Context, device string) (bool, error) {
	const op = "deviceExists"
	if device == "" {
		return false, opError(op, invalidArgument("empty device"), device)
	}

	answer, err := await[protocol.DeviceExistsAnswer](ctx, a, protocol.DeviceExists{Device: device})
	if err != nil {
		return false, opError(op, err, device)
	}
	return answer.Exists, nil
}

// DeviceDetails returns the details stored with device when it was declared.
func (a *API) DeviceDetails(ctx context.Context, device string) (*datacontainer.Container, error) {
	const op = "deviceDetails"
	if device == "" {
		return nil, opError(op, invalidArgument("empty device"), device)
	}

	answer, err := await[protocol.DeviceDetailsAnswer](ctx, a, protocol.DeviceDetails{Device: device})
	if err != nil {
		return nil, opError(op, err, device)
	}
	details, err := datacontainer.Parse(answer.Details)
	if err != nil {
		return nil, opError(op, err, device)
	}
	return details, nil
}

// DeclareDevice declares device with a single keyword. details may be nil.
func (a *API) DeclareDevice(ctx context.Context, device, model string, keyword historization.Keyword, details *datacontainer.Container) error {
	if historization.IsNil(keyword) {
		return opError("declareDevice", invalidArgument("nil keyword"), device, model)
	}
	return a.DeclareDeviceKeywords(ctx, device, model, []historization.Keyword{keyword}, details)
}

// DeclareDeviceKeywords declares device with all its keywords. details may be nil.
func (a *API) DeclareDeviceKeywords(ctx context.Context, device, model string, keywords []historization.Keyword, details *datacontainer.Container) error {
	const op = "declareDevice"
	if device == "" {
		return opError(op, invalidArgument("empty device"), device, model)
	}
	if model == "" {
		return opError(op, invalidArgument("empty model"), device, model)
	}
	for i, k := range keywords {
		if historization.IsNil(k) {
			return opError(op, invalidArgument("nil keyword at %d", i), device, model)
		}
	}

	m := protocol.DeclareDevice{
		Device:   device,
		Model:    model,
		Keywords: historization.Descriptors(keywords...),
	}
	if !details.Empty() {
		m.Details = details.Serialize()
	}
	return opError(op, a.send(ctx, m), device, model, keywordNames(keywords))
}

// DeclareKeyword adds keyword to an existing device. details may be nil.
func (a *API) DeclareKeyword(ctx context.Context, device string, keyword historization.Keyword, details *datacontainer.Container) error {
	const op = "declareKeyword"
	if device == "" {
		return opError(op, invalidArgument("empty device"), device)
	}
	if historization.IsNil(keyword) {
		return opError(op, invalidArgument("nil keyword"), device)
	}

	m := protocol.DeclareKeyword{Device: device, Keyword: keyword.Historizable()}
	if !details.Empty() {
		m.Details = details.Serialize()
	}
	return opError(op, a.send(ctx, m), device, keyword.Name())
}

// KeywordExists asks the host whether device has a keyword named keyword.
func (a *API) KeywordExists(ctx context.Context, device, keyword string) (bool, error) {
	const op = "keywordExists"
	if device == "" {
		return false, opError(op, invalidArgument("empty device"), device, keyword)
	}
	if keyword == "" {
		return false, opError(op, invalidArgument("empty keyword"), device, keyword)
	}

	answer, err := await[protocol.KeywordExistsAnswer](ctx, a, protocol.KeywordExists{Device: device, Keyword: keyword})
	if err != nil {
		return false, opError(op, err, device, keyword)
	}
	return answer.Exists, nil
}

// HasKeyword is KeywordExists for a keyword object.
func (a *API) HasKeyword(ctx context.Context, device string, keyword historization.Keyword) (bool, error) {
	if historization.IsNil(keyword) {
		return false, opError("keywordExists", invalidArgument("nil keyword"), device)
	}
	return a.KeywordExists(ctx, device, keyword.Name())
}

// RecipientValue returns field fieldName of recipient recipientID.
func (a *API) RecipientValue(ctx context.Context, recipientID int32, fieldName string) (string, error) {
	const op = "recipientValue"
	if fieldName == "" {
		return "", opError(op, invalidArgument("empty field name"), recipientID, fieldName)
	}

	answer, err := await[protocol.RecipientValueAnswer](ctx, a, protocol.RecipientValueRequest{RecipientID: recipientID, FieldName: fieldName})
	if err != nil {
		return "", opError(op, err, recipientID, fieldName)
	}
	return answer.Value, nil
}

// FindRecipientsFromField returns the ids of recipients whose fieldName equals expectedValue.
func (a *API) FindRecipientsFromField(ctx context.Context, fieldName, expectedValue string) ([]int32, error) {
	const op = "findRecipientsFromField"
	if fieldName == "" {
		return nil, opError(op, invalidArgument("empty field name"), fieldName, expectedValue)
	}

	answer, err := await[protocol.FindRecipientsFromFieldAnswer](ctx, a, protocol.FindRecipientsFromField{FieldName: fieldName, ExpectedFieldValue: expectedValue})
	if err != nil {
		return nil, opError(op, err, fieldName, expectedValue)
	}
	return answer.RecipientIDs, nil
}

// RecipientFieldExists asks whether recipients have a field named fieldName.
func (a *API) RecipientFieldExists(ctx context.Context, fieldName string) (bool, error) {
	const op = "recipientFieldExists"
	if fieldName == "" {
		return false, opError(op, invalidArgument("empty field name"), fieldName)
	}

	answer, err := await[protocol.RecipientFieldExistsAnswer](ctx, a, protocol.RecipientFieldExists{FieldName: fieldName})
	if err != nil {
		return false, opError(op, err, fieldName)
	}
	return answer.Exists, nil
}

// HistorizeData records the current value of keyword.
func (a *API) HistorizeData(ctx context.Context, device string, keyword historization.Keyword) error {
	if historization.IsNil(keyword) {
		return opError("historizeData", invalidArgument("nil keyword"), device)
	}
	return a.HistorizeDataBatch(ctx, device, []historization.Keyword{keyword})
}

// HistorizeDataBatch records the current values of keywords in one message.
func (a *API) HistorizeDataBatch(ctx context.Context, device string, keywords []historization.Keyword) error {
	const op = "historizeData"
	if device == "" {
		return opError(op, invalidArgument("empty device"), device)
	}
	if len(keywords) == 0 {
		return opError(op, invalidArgument("no keyword"), device)
	}
	for i, k := range keywords {
		if historization.IsNil(k) {
			return opError(op, invalidArgument("nil keyword at %d", i), device)
		}
	}

	m := protocol.HistorizeData{Device: device, Values: historization.Values(keywords...)}
	return opError(op, a.send(ctx, m), device, keywordNames(keywords))
}

// Configuration returns the plugin configuration held by the host.
func (a *API) Configuration(ctx context.Context) (*datacontainer.Container, error) {
	const op = "configuration"

	answer, err := await[protocol.ConfigurationAnswer](ctx, a, protocol.ConfigurationRequest{})
	if err != nil {
		return nil, opError(op, err)
	}
	configuration, err := datacontainer.Parse(answer.Configuration)
	if err != nil {
		return nil, opError(op, err)
	}
	return configuration, nil
}

func keywordNames(keywords []historization.Keyword) []string {
	names := make([]string, 0, len(keywords))
	for _, k := range keywords {
		names = append(names, k.Name())
	}
	return names
}
