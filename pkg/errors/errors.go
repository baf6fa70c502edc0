// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

// Package errors defines the error taxonomy for LedgerGuard. Every error
// carries a machine-readable dot-separated Code plus optional structured
// fields, built on samber/oops so that wrapped chains keep their context.
package errors

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreRequestNotFound    Code = "store.request.get.not_found"
	CodeStoreResultNotFound     Code = "store.result.get.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeIdentityPermissionDenied Code = "identity.permission.denied"
	CodeIdentityGroupDenied      Code = "identity.group.access.denied"
	CodeIdentityUnknownPrincipal Code = "identity.principal.not_found"

	CodeProviderRequestInvalid  Code = "provider.request.invalid"
	CodeProviderResponseInvalid Code = "provider.response.invalid"
	CodeProviderUpstreamFailure Code = "provider.upstream.failure"
	CodeProviderNotConfigured   Code = "provider.registry.not_found"

	CodeToolsUnknownTool     Code = "tools.registry.unknown_tool"
	CodeToolsInvalidArgument Code = "tools.argument.invalid"
	CodeToolsRefDataInvalid  Code = "tools.refdata.invalid"

	CodeAgentRunInvalidInput   Code = "agent.run.invalid_input"
	CodeAgentProtocolViolation Code = "agent.protocol.violation"
	CodeAgentSchemaInvalid     Code = "agent.verdict.schema_invalid"
	CodeAgentRunCancelled      Code = "agent.run.cancelled"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldRequestID(value int64) Attr  { return Field("request_id", value) }
func FieldResultID(value int64) Attr   { return Field("result_id", value) }
func FieldPrincipal(value string) Attr { return Field("principal", value) }
func FieldGroup(value string) Attr     { return Field("group", value) }
func FieldTool(value string) Attr      { return Field("tool", value) }
func FieldProvider(value string) Attr  { return Field("provider", value) }
func FieldRunID(value string) Attr     { return Field("run_id", value) }

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, preserving its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeStoreDatabaseFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsPermissionDenied reports whether err represents an RBAC or ABAC denial.
// These are always user-visible failures and are never downgraded.
func IsPermissionDenied(err error) bool {
	r := reason(CodeOf(err))
	return r == "denied" || r == "forbidden"
}

// IsUpstreamFailure reports whether err is a model-endpoint transport failure
// that survived the retry budget.
func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsProtocolViolation reports whether err is unrecoverable model misbehavior:
// no usable content and no tool call over an entire run.
func IsProtocolViolation(err error) bool {
	return reason(CodeOf(err)) == "violation"
}

// IsUnknownTool reports whether err is the fatal internal error of the model
// naming a tool absent from the registry.
func IsUnknownTool(err error) bool {
	return reason(CodeOf(err)) == "unknown_tool"
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// reason extracts the last dot-separated segment of a code.
func reason(code Code) string {
	s := string(code)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func flatten(fields []Attr) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
