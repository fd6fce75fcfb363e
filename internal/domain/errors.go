package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrLimitReached  = fmt.Errorf("limit reached")
	ErrDisabled      = fmt.Errorf("disabled")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")

	// Routing / orchestration errors.
	ErrRegistryLoad     = fmt.Errorf("agent registry load failed")
	ErrNoActiveAgents   = fmt.Errorf("no active agents configured")
	ErrClassifierFailed = fmt.Errorf("routing classifier failed")
	ErrAgentFailed      = fmt.Errorf("agent invocation failed")
	ErrRefinementFailed = fmt.Errorf("critic refinement failed")

	// Structured prompt errors.
	ErrPromptNotFound = fmt.Errorf("prompt not found")
	ErrPromptSchema   = fmt.Errorf("prompt output violates schema")
	ErrPromptOutput   = fmt.Errorf("prompt output malformed")

	// Agent store errors.
	ErrAgentStore = fmt.Errorf("agent store operation failed")

	// Resilience errors.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrCircuitOpen     = fmt.Errorf("circuit breaker open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Registry.EnsureLoaded")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "registry", "prompt"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrCircuitOpen)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeProviderNotFound ErrorCode = "PROVIDER_NOT_FOUND"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeRegistryLoad     ErrorCode = "REGISTRY_LOAD"
	CodeNoActiveAgents   ErrorCode = "NO_ACTIVE_AGENTS"
	CodeClassifierFailed ErrorCode = "CLASSIFIER_FAILED"
	CodeAgentFailed      ErrorCode = "AGENT_FAILED"
	CodeRefinement       ErrorCode = "REFINEMENT_FAILED"
	CodePromptNotFound   ErrorCode = "PROMPT_NOT_FOUND"
	CodePromptSchema     ErrorCode = "PROMPT_SCHEMA"
	CodePromptOutput     ErrorCode = "PROMPT_OUTPUT"
	CodeAgentStore       ErrorCode = "AGENT_STORE"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid      ErrorCode = "AUTH_INVALID"
	CodeContextOverflow  ErrorCode = "CONTEXT_OVERFLOW"
	CodeCircuitOpen      ErrorCode = "CIRCUIT_OPEN"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeAgentTimeout    ErrorCode = "AGENT_TIMEOUT"
	CodePromptTimeout   ErrorCode = "PROMPT_TIMEOUT"
	CodeAgentNotFound   ErrorCode = "AGENT_NOT_FOUND"
	CodeAgentDuplicate  ErrorCode = "AGENT_DUPLICATE"
	CodePromptDuplicate ErrorCode = "PROMPT_DUPLICATE"
	CodeQuestionInvalid ErrorCode = "QUESTION_INVALID"

	// Category error codes, used when no subsystem-specific code matches.
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeDuplicate     ErrorCode = "DUPLICATE"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeLimitReached  ErrorCode = "LIMIT_REACHED"
	CodeDisabled      ErrorCode = "DISABLED"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrDuplicate:     CodeDuplicate,
	ErrTimeout:       CodeTimeout,
	ErrLimitReached:  CodeLimitReached,
	ErrDisabled:      CodeDisabled,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	ErrProviderNotFound: CodeProviderNotFound,
	ErrConfigLoad:       CodeConfigLoad,
	ErrRegistryLoad:     CodeRegistryLoad,
	ErrNoActiveAgents:   CodeNoActiveAgents,
	ErrClassifierFailed: CodeClassifierFailed,
	ErrAgentFailed:      CodeAgentFailed,
	ErrRefinementFailed: CodeRefinement,
	ErrPromptNotFound:   CodePromptNotFound,
	ErrPromptSchema:     CodePromptSchema,
	ErrPromptOutput:     CodePromptOutput,
	ErrAgentStore:       CodeAgentStore,
	ErrRateLimit:        CodeRateLimit,
	ErrAuthInvalid:      CodeAuthInvalid,
	ErrContextOverflow:  CodeContextOverflow,
	ErrCircuitOpen:      CodeCircuitOpen,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"agent":  CodeAgentNotFound,
		"prompt": CodePromptNotFound,
	},
	ErrDuplicate: {
		"agent":  CodeAgentDuplicate,
		"prompt": CodePromptDuplicate,
	},
	ErrTimeout: {
		"agent":  CodeAgentTimeout,
		"prompt": CodePromptTimeout,
	},
	ErrInvalidInput: {
		"question": CodeQuestionInvalid,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
