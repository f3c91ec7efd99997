// Package extract heuristically recovers a shell command and exit status
// from the free-form result metadata the archives carry. The walked
// structures come from an external product format with no schema. A
// visited set guards against cycles, and the walk order (object members
// in declaration order, then array items in index order) is fixed
// because it decides which of several conflicting signals wins.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/neilberkman/cophist/pkg/chatsessions"
)

var exitCodeKeys = []string{"exitCode", "exit_code", "code"}

var exitCodeText = regexp.MustCompile(`(?i)exit code\s*(-?\d+)`)

// ExitCode walks a value tree depth-first looking for an exit status.
// Explicit integer-valued keys take priority over textual "exit code N"
// matches in string leaves.
func ExitCode(v *chatsessions.Value) (int64, bool) {
	return exitCode(v, map[*chatsessions.Value]struct{}{})
}

func exitCode(v *chatsessions.Value, seen map[*chatsessions.Value]struct{}) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if _, ok := seen[v]; ok {
		return 0, false
	}
	seen[v] = struct{}{}

	switch v.Kind {
	case chatsessions.KindObject:
		for _, key := range exitCodeKeys {
			if member := v.Get(key); member != nil {
				if code, ok := member.IntVal(); ok {
					return code, true
				}
			}
		}
		for _, m := range v.Members {
			if code, ok := exitCode(m.Value, seen); ok {
				return code, true
			}
		}
	case chatsessions.KindArray:
		for _, item := range v.Items {
			if code, ok := exitCode(item, seen); ok {
				return code, true
			}
		}
	case chatsessions.KindString:
		if match := exitCodeText.FindStringSubmatch(v.Str); match != nil {
			if code, err := strconv.ParseInt(match[1], 10, 64); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

// RequestExitCode applies ExitCode to a request's signal sources in fixed
// priority: result metadata, then the whole result, then the response
// items. A zero recovered from the metadata or result falls through to
// the next source, but the response scan stops at the first recovered
// code: a response reporting exit 0 suppresses anything later items
// might claim. Only a non-zero status is reported.
func RequestExitCode(req *chatsessions.Request) *int64 {
	for _, source := range []*chatsessions.Value{req.Metadata, req.Result} {
		if code, ok := ExitCode(source); ok && code != 0 {
			return &code
		}
	}
	for _, resp := range req.Responses {
		if code, ok := ExitCode(resp.Raw); ok {
			if code != 0 {
				return &code
			}
			return nil
		}
	}
	return nil
}

// Command recovers the best-guess command text for a request. The
// priority ladder: direct command fields on the metadata and request,
// then a walk for commandLine/command/argv hints in the metadata and the
// raw request, then the user-authored prompt text as last resort.
func Command(req *chatsessions.Request) string {
	var candidates []*chatsessions.Value
	if req.Metadata != nil {
		for _, key := range []string{"command", "lastCommand", "toolCommand"} {
			candidates = append(candidates, req.Metadata.Get(key))
		}
	}
	if req.Raw != nil {
		for _, key := range []string{"command", "lastCommand"} {
			candidates = append(candidates, req.Raw.Get(key))
		}
	}
	for _, candidate := range candidates {
		if s, ok := candidate.StringVal(); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	for _, source := range []*chatsessions.Value{req.Metadata, req.Raw} {
		if cmd := walkCommandHints(source, map[*chatsessions.Value]struct{}{}); cmd != "" {
			return cmd
		}
	}

	if req.PromptText != nil && strings.TrimSpace(*req.PromptText) != "" {
		return strings.TrimSpace(*req.PromptText)
	}
	return ""
}

// normalizeCandidate accepts a string or a sequence of strings (argv
// style), returning the trimmed command or "".
func normalizeCandidate(v *chatsessions.Value) string {
	if v == nil {
		return ""
	}
	if s, ok := v.StringVal(); ok {
		return strings.TrimSpace(s)
	}
	if v.Kind == chatsessions.KindArray {
		var parts []string
		for _, item := range v.Items {
			if s, ok := item.StringVal(); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func walkCommandHints(v *chatsessions.Value, seen map[*chatsessions.Value]struct{}) string {
	if v == nil {
		return ""
	}
	if _, ok := seen[v]; ok {
		return ""
	}
	seen[v] = struct{}{}

	switch v.Kind {
	case chatsessions.KindObject:
		commandLine := v.Get("commandLine")
		if candidate := normalizeCandidate(commandLine); candidate != "" {
			return candidate
		}
		if commandLine != nil && commandLine.Kind == chatsessions.KindObject {
			if candidate := normalizeCandidate(commandLine.Get("original")); candidate != "" {
				return candidate
			}
		}

		for _, key := range []string{"command", "toolCommand", "lastCommand", "fullCommand"} {
			if candidate := normalizeCandidate(v.Get(key)); candidate != "" {
				return candidate
			}
		}

		for _, key := range []string{"argv", "args"} {
			if candidate := normalizeCandidate(v.Get(key)); candidate != "" {
				return candidate
			}
		}

		for _, m := range v.Members {
			if cmd := walkCommandHints(m.Value, seen); cmd != "" {
				return cmd
			}
		}
	case chatsessions.KindArray:
		for _, item := range v.Items {
			if cmd := walkCommandHints(item, seen); cmd != "" {
				return cmd
			}
		}
	}
	return ""
}
