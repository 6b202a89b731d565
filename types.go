package tsuiseki

import (
	"github.com/ashita-ai/tsuiseki/internal/finish"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
	"github.com/ashita-ai/tsuiseki/internal/scopes"
)

// The pipeline types are aliases of their internal counterparts so user
// catalogs and extraction callbacks interoperate with the core and with
// the integration packages.
type (
	// CallRecord is the normalized view of one intercepted call.
	CallRecord = model.CallRecord

	// WrapperMethod declares one interception target.
	WrapperMethod = model.WrapperMethod

	// OutputProcessor declares entity and event population for a call
	// shape.
	OutputProcessor = model.OutputProcessor

	// EntitySpec declares one numbered entity attribute group.
	EntitySpec = model.EntitySpec

	// EventSpec declares one span event.
	EventSpec = model.EventSpec

	// AttributeSpec binds an attribute key to its extraction callback.
	AttributeSpec = model.AttributeSpec

	// ExtractorFunc pulls one value out of a call record.
	ExtractorFunc = model.ExtractorFunc

	// InvokeFunc executes the wrapped call.
	InvokeFunc = model.InvokeFunc

	// TraceFunc is the span-lifecycle wrapper installed on targets.
	TraceFunc = model.TraceFunc

	// InstallFunc routes an integration's call surface through a wrapper.
	InstallFunc = model.InstallFunc

	// RestoreFunc undoes one installed interception target.
	RestoreFunc = model.RestoreFunc

	// SpanError marks an embedded error found inside a successful
	// response payload.
	SpanError = model.SpanError

	// ScopeToken undoes one scope attachment.
	ScopeToken = scopes.Token

	// FinishType is the normalized completion classification.
	FinishType = finish.Type
)

// Finish classifications.
const (
	FinishSuccess       = finish.Success
	FinishTruncated     = finish.Truncated
	FinishContentFilter = finish.ContentFilter
	FinishRefusal       = finish.Refusal
	FinishError         = finish.Error
	FinishToolCall      = finish.ToolCall
)

// span.type values for user-defined output processors.
const (
	SpanTypeWorkflow   = model.SpanTypeWorkflow
	SpanTypeGeneric    = model.SpanTypeGeneric
	SpanTypeInference  = model.SpanTypeInference
	SpanTypeRetrieval  = model.SpanTypeRetrieval
	SpanTypeAgentic    = model.SpanTypeAgentic
	SpanTypeToolInvoke = model.SpanTypeToolInvoke
)

// Span event names.
const (
	EventInput    = model.EventInput
	EventOutput   = model.EventOutput
	EventMetadata = model.EventMetadata
)

// Accessor helpers for building output processors.
var (
	// FirstOf tries accessors in order and keeps the first usable value.
	FirstOf = hydrate.FirstOf

	// Alias reads the first present named argument.
	Alias = hydrate.Alias

	// Const always yields the given value.
	Const = hydrate.Const

	// Nested probes a value by path across maps, structs, and slices.
	Nested = hydrate.Nested

	// RoleMessage renders a role-tagged message JSON string.
	RoleMessage = hydrate.RoleMessage

	// ClassifyFinish maps a raw provider finish reason to a FinishType.
	ClassifyFinish = finish.Map
)
