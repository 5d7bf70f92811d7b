// Package protocol defines the messages exchanged between a host and a plugin
// and their binary encoding.
//
// Both directions are closed sum types: ToPlugin for host to plugin traffic and
// ToHost for plugin to host traffic. An envelope is a protobuf message holding
// exactly one variant field; the field numbers below are the schema and must
// not be renumbered. Unknown variants are rejected, never skipped, so mismatched
// host and plugin versions fail fast.
package protocol

import (
	"errors"
)

// Tag names a message variant. It is used for diagnostics and routing.
type Tag string

const (
	TagInit                          Tag = "init"
	TagStop                          Tag = "stop"
	TagUpdateConfiguration           Tag = "updateConfiguration"
	TagBindingQuery                  Tag = "bindingQuery"
	TagDeviceCommand                 Tag = "deviceCommand"
	TagExtraCommand                  Tag = "extraCommand"
	TagManuallyDeviceCreation        Tag = "manuallyDeviceCreation"
	TagDeviceExistsAnswer            Tag = "deviceExistsAnswer"
	TagDeviceDetailsAnswer           Tag = "deviceDetailsAnswer"
	TagKeywordExistsAnswer           Tag = "keywordExistsAnswer"
	TagRecipientValueAnswer          Tag = "recipientValueAnswer"
	TagFindRecipientsFromFieldAnswer Tag = "findRecipientsFromFieldAnswer"
	TagRecipientFieldExistsAnswer    Tag = "recipientFieldExistsAnswer"
	TagConfigurationAnswer           Tag = "configurationAnswer"

	TagPluginState                  Tag = "pluginState"
	TagDeviceExists                 Tag = "deviceExists"
	TagDeviceDetails                Tag = "deviceDetails"
	TagDeclareDevice                Tag = "declareDevice"
	TagDeclareKeyword               Tag = "declareKeyword"
	TagKeywordExists                Tag = "keywordExists"
	TagRecipientValueRequest        Tag = "recipientValueRequest"
	TagFindRecipientsFromField      Tag = "findRecipientsFromField"
	TagRecipientFieldExists         Tag = "recipientFieldExists"
	TagHistorizeData                Tag = "historizeData"
	TagConfigurationRequest         Tag = "configurationRequest"
	TagBindingQueryAnswer           Tag = "bindingQueryAnswer"
	TagManuallyDeviceCreationAnswer Tag = "manuallyDeviceCreationAnswer"
)

// ToPlugin is a message sent by the host to a plugin.
type ToPlugin interface {
	Tag() Tag
	isToPlugin()
}

// ToHost is a message sent by a plugin to the host.
type ToHost interface {
	Tag() Tag
	isToHost()
}

// Answer is a ToPlugin variant that answers a ToHost request.
type Answer interface {
	ToPlugin
	// Answers returns the tag of the request this variant answers.
	Answers() Tag
}

// IsAnswer reports whether m answers a plugin request.
func IsAnswer(m ToPlugin) bool {
	_, ok := m.(Answer)
	return ok
}

var (
	// ErrSerialization is returned when a message cannot be encoded: a required
	// field is unset or the encoding exceeds the size limit.
	ErrSerialization = errors.New("serialization failure")

	// ErrMalformedMessage is returned when bytes do not decode into a valid variant.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownMessageType is returned for a well-formed envelope whose variant
	// is not part of this schema.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrInvalidEnumValue is returned for an enum value outside its declared set.
	ErrInvalidEnumValue = errors.New("invalid enum value")
)
