package model

import "fmt"

// Span attribute keys. These are bit-exact: downstream trace tooling
// matches on them.
const (
	AttrSpanType     = "span.type"
	AttrSpanSubtype  = "span.subtype"
	AttrWorkflowName = "workflow.name"
	AttrEntityCount  = "entity.count"
	AttrSpanSource   = "span_source"

	// SDK self-identification, stamped on every span.
	AttrSDKVersion  = "tsuiseki.version"
	AttrSDKLanguage = "tsuiseki.language"

	// Set when attribute or event extraction itself detected an error.
	AttrDetectedSpanError = "tsuiseki.detected_span_error"

	// ScopeAttrPrefix prefixes one attribute per active scope.
	ScopeAttrPrefix = "scope."
)

// Span event names, a closed vocabulary.
const (
	EventInput    = "data.input"
	EventOutput   = "data.output"
	EventMetadata = "metadata"
)

// Event attribute keys.
const (
	AttrInput            = "input"
	AttrResponse         = "response"
	AttrErrorCode        = "error_code"
	AttrFinishReason     = "finish_reason"
	AttrFinishType       = "finish_type"
	AttrPromptTokens     = "prompt_tokens"
	AttrCompletionTokens = "completion_tokens"
	AttrTotalTokens      = "total_tokens"
)

// span.type values used by the built-in catalog.
const (
	SpanTypeWorkflow   = "workflow"
	SpanTypeGeneric    = "generic"
	SpanTypeInference  = "inference"
	SpanTypeRetrieval  = "retrieval"
	SpanTypeAgentic    = "agentic.invocation"
	SpanTypeToolInvoke = "agentic.tool.invocation"
)

// Workflow entity types, derived from the intercepted package.
const (
	WorkflowGeneric = "workflow.generic"
)

// EntityAttr builds the numbered entity attribute key entity.<n>.<field>.
func EntityAttr(n int, field string) string {
	return fmt.Sprintf("entity.%d.%s", n, field)
}

// WorkflowTypeForPackage maps an intercepted package prefix to a workflow
// entity type. Unrecognized packages are generic.
func WorkflowTypeForPackage(pkg string) string {
	for prefix, wt := range workflowTypeMap {
		if pkg != "" && len(pkg) >= len(prefix) && pkg[:len(prefix)] == prefix {
			return wt
		}
	}
	return WorkflowGeneric
}

var workflowTypeMap = map[string]string{
	"openai":    "workflow.openai",
	"anthropic": "workflow.anthropic",
	"qdrant":    "workflow.qdrant",
	"pgvector":  "workflow.pgvector",
	"mcp":       "workflow.mcp",
}

// Hosting-environment detection: env var presence identifies the infra the
// application runs on; a second env var supplies its name.
var (
	// ServiceTypeEnv maps a detection env var to a hosting service type.
	ServiceTypeEnv = map[string]string{
		"AZUREML_ENTRY_SCRIPT":     "azure_ml",
		"WEBSITE_SITE_NAME":        "azure_webapp",
		"FUNCTIONS_WORKER_RUNTIME": "azure_func",
		"AWS_LAMBDA_RUNTIME_API":   "aws_lambda",
		"CODESPACES":               "github_codespace",
	}

	// ServiceNameEnv maps a hosting service type to the env var naming the
	// deployed unit.
	ServiceNameEnv = map[string]string{
		"azure_ml":         "AZUREML_ENTRY_SCRIPT",
		"azure_webapp":     "WEBSITE_DEPLOYMENT_ID",
		"azure_func":       "WEBSITE_SITE_NAME",
		"aws_lambda":       "AWS_LAMBDA_FUNCTION_NAME",
		"github_codespace": "GITHUB_REPOSITORY",
	}
)

// SDKVersion is stamped on every span; bumped on release.
const SDKVersion = "0.1.0"
