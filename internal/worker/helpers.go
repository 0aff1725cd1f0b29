package worker

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// HelperConfig toggles the callback-backed helper categories off for
// offline testing (spec.md §4.8): each disabled category answers with a
// deterministic placeholder instead of emitting a Callback frame, so a
// worker can be exercised with no host on the other end of the pipe.
type HelperConfig struct {
	DisableCallbacks    bool
	DisableMemory       bool
	DisableVerification bool
}

// preloadedNames lists every global binding installed by NewNamespace,
// used to keep reconcile() from mistaking a preloaded helper for a
// user-defined variable.
func preloadedNames() []string {
	return []string{
		"print", "console", "path",
		"peek", "grep", "partition", "partition_by_lines",
		"extract_functions", "count_tokens_approx",
		"llm_call", "llm_batch", "summarize", "map_reduce", "find_relevant",
		"memory_query", "memory_add_fact", "memory_add_experience",
		"memory_get_context", "memory_relate",
		"verify_claim", "verify_claims", "audit_trace", "plugin_call",
		"FINAL", "FINAL_VAR", "FINAL_JSON", "FINAL_CODE",
		"has_final_output", "get_final_output", "clear_final_output",
	}
}

// installHelperRegistry binds every preloaded helper function, wiring
// callback-backed ones to ch and gating them per cfg.
func installHelperRegistry(vm *goja.Runtime, ch *Channel, cfg HelperConfig, final *FinalOutput) {
	installPureHelpers(vm)
	installLLMHelpers(vm, ch, cfg)
	installMemoryHelpers(vm, ch, cfg)
	installVerificationHelpers(vm, ch, cfg)
	installFinalHelpers(vm, final)
}

// --- pure data-transform helpers --------------------------------------
//
// These are plain string/slice manipulation with no external dependency
// to speak of — spec.md §4.8 calls their exact implementation
// uninteresting, so they are built directly on the standard library with
// no third-party justification required (see DESIGN.md).

func installPureHelpers(vm *goja.Runtime) {
	vm.Set("peek", helperPeek)
	vm.Set("grep", helperGrep)
	vm.Set("partition", helperPartition)
	vm.Set("partition_by_lines", helperPartitionByLines)
	vm.Set("extract_functions", helperExtractFunctions)
	vm.Set("count_tokens_approx", helperCountTokensApprox)
}

func helperPeek(value string, n int) string {
	runes := []rune(value)
	if n <= 0 || n >= len(runes) {
		return value
	}
	return string(runes[:n]) + "..."
}

func helperGrep(text, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, line := range strings.Split(text, "\n") {
		if re.MatchString(line) {
			matched = append(matched, line)
		}
	}
	return matched, nil
}

func helperPartition(items []interface{}, size int) ([][]interface{}, error) {
	if size <= 0 {
		return nil, errors.New("partition: size must be positive")
	}
	var chunks [][]interface{}
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	return append(chunks, items), nil
}

func helperPartitionByLines(text string, n int) ([]string, error) {
	if n <= 0 {
		return nil, errors.New("partition_by_lines: n must be positive")
	}
	lines := strings.Split(text, "\n")
	var chunks []string
	for i := 0; i < len(lines); i += n {
		end := i + n
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, strings.Join(lines[i:end], "\n"))
	}
	return chunks, nil
}

var functionSignaturePattern = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(([^)]*)\)`)

// helperExtractFunctions scans source text for top-level function
// declarations and returns their names and parameter lists — a
// regexp-based approximation, not a real parse, matching the "pure data
// transform" framing of spec.md §4.8.
func helperExtractFunctions(code string) []map[string]interface{} {
	matches := functionSignaturePattern.FindAllStringSubmatch(code, -1)
	out := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		var params []string
		for _, p := range strings.Split(m[2], ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				params = append(params, p)
			}
		}
		out = append(out, map[string]interface{}{
			"name":   m[1],
			"params": params,
		})
	}
	return out
}

// helperCountTokensApprox estimates token count at roughly four
// characters per token, the same rough heuristic used elsewhere for
// quick context-budget checks.
func helperCountTokensApprox(text string) int {
	n := len([]rune(text)) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// --- callback-backed helpers --------------------------------------------

func viaCallback(ch *Channel, disabled bool, callbackType string, params interface{}, placeholder interface{}) (interface{}, error) {
	if disabled || ch == nil {
		return placeholder, nil
	}
	resp, err := ch.Call(callbackType, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.Results != nil {
		return resp.Results, nil
	}
	return resp.Result, nil
}

// llmOptions pulls the context/model fields every LLM-facing callback
// puts on the wire out of the caller's options object, applying the
// "auto" model default (spec.md §8 scenario 5).
func llmOptions(opts map[string]interface{}) (context string, model string) {
	context, _ = opts["context"].(string)
	model, _ = opts["model"].(string)
	if model == "" {
		model = "auto"
	}
	return context, model
}

// llmCallParams and llmBatchParams are plain structs, not maps: the field
// order they marshal to JSON in must match spec.md §8 scenario 5's pinned
// callback frame verbatim (prompt, then context, then model), and
// encoding/json sorts map[string]interface{} keys alphabetically.
type llmCallParams struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
	Model   string `json:"model"`
}

type llmBatchParams struct {
	Prompts []interface{} `json:"prompts"`
	Context string        `json:"context"`
	Model   string        `json:"model"`
}

func installLLMHelpers(vm *goja.Runtime, ch *Channel, cfg HelperConfig) {
	vm.Set("llm_call", func(prompt string, opts map[string]interface{}) (interface{}, error) {
		context, model := llmOptions(opts)
		return viaCallback(ch, cfg.DisableCallbacks, "llm_call",
			llmCallParams{Prompt: prompt, Context: context, Model: model}, "")
	})

	vm.Set("llm_batch", func(prompts []interface{}, opts map[string]interface{}) (interface{}, error) {
		context, model := llmOptions(opts)
		if cfg.DisableCallbacks || ch == nil {
			placeholders := make([]interface{}, len(prompts))
			return placeholders, nil
		}
		resp, err := ch.Call("llm_batch", llmBatchParams{Prompts: prompts, Context: context, Model: model})
		if err == nil && resp.Error == "" {
			return resp.Results, nil
		}
		// Fall back to one llm_call per prompt if the batch call itself
		// failed — a single bad prompt in a batch should not sink the
		// rest (spec.md §4.8).
		results := make([]interface{}, len(prompts))
		for i, p := range prompts {
			prompt, _ := p.(string)
			single, callErr := viaCallback(ch, false, "llm_call",
				llmCallParams{Prompt: prompt, Context: context, Model: model}, "")
			if callErr != nil {
				results[i] = nil
				continue
			}
			results[i] = single
		}
		return results, nil
	})

	vm.Set("summarize", func(text string, opts map[string]interface{}) (interface{}, error) {
		context, model := llmOptions(opts)
		return viaCallback(ch, cfg.DisableCallbacks, "summarize",
			struct {
				Text    string `json:"text"`
				Context string `json:"context"`
				Model   string `json:"model"`
			}{Text: text, Context: context, Model: model}, "")
	})

	vm.Set("map_reduce", func(items []interface{}, mapPrompt, reducePrompt string) (interface{}, error) {
		return viaCallback(ch, cfg.DisableCallbacks, "map_reduce",
			map[string]interface{}{"items": items, "map_prompt": mapPrompt, "reduce_prompt": reducePrompt}, "")
	})

	vm.Set("find_relevant", func(query string, candidates []interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableCallbacks, "find_relevant",
			map[string]interface{}{"query": query, "candidates": candidates}, []interface{}{})
	})
}

func installMemoryHelpers(vm *goja.Runtime, ch *Channel, cfg HelperConfig) {
	vm.Set("memory_query", func(query string, opts map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableMemory, "memory_query",
			map[string]interface{}{"query": query, "options": opts}, []interface{}{})
	})

	vm.Set("memory_add_fact", func(fact string, opts map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableMemory, "memory_add_fact",
			map[string]interface{}{"fact": fact, "options": opts}, true)
	})

	vm.Set("memory_add_experience", func(experience map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableMemory, "memory_add_experience",
			map[string]interface{}{"experience": experience}, true)
	})

	vm.Set("memory_get_context", func(opts map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableMemory, "memory_get_context",
			map[string]interface{}{"options": opts}, "")
	})

	vm.Set("memory_relate", func(a, b, relation string) (interface{}, error) {
		return viaCallback(ch, cfg.DisableMemory, "memory_relate",
			map[string]interface{}{"a": a, "b": b, "relation": relation}, true)
	})
}

func installVerificationHelpers(vm *goja.Runtime, ch *Channel, cfg HelperConfig) {
	vm.Set("verify_claim", func(claim string, opts map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableVerification, "verify_claim",
			map[string]interface{}{"claim": claim, "options": opts}, map[string]interface{}{"verified": false, "reason": "verification disabled"})
	})

	vm.Set("verify_claims", func(claims []interface{}, opts map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableVerification, "verify_claims",
			map[string]interface{}{"claims": claims, "options": opts}, []interface{}{})
	})

	vm.Set("audit_trace", func(event string, detail map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableVerification, "audit_trace",
			map[string]interface{}{"event": event, "detail": detail}, true)
	})

	vm.Set("plugin_call", func(name string, params map[string]interface{}) (interface{}, error) {
		return viaCallback(ch, cfg.DisableCallbacks, name, params, nil)
	})
}

// --- final-output helpers ------------------------------------------------

func installFinalHelpers(vm *goja.Runtime, final *FinalOutput) {
	// FINAL echoes content back unchanged, so that the caller's own
	// expression-completion value (and thus return_value/repr) reflects
	// exactly what was marked final, with no separate transformation step
	// to keep in sync.
	vm.Set("FINAL", func(content string, kind string) string {
		if kind == "" {
			kind = "text"
		}
		final.Set(content, kind, nil)
		return content
	})

	vm.Set("FINAL_VAR", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		v := vm.GlobalObject().Get(name)
		if v == nil || goja.IsUndefined(v) {
			panic(vm.NewTypeError(fmt.Sprintf("FINAL_VAR: variable '%s' not found", name)))
		}
		content := strOf(v.Export())
		final.Set(content, "text", nil)
		return vm.ToValue(content)
	})

	vm.Set("FINAL_JSON", func(value interface{}, metadata map[string]interface{}) interface{} {
		final.Set(reprOf(value), "json", metadata)
		return value
	})

	vm.Set("FINAL_CODE", func(code, language string) string {
		final.Set(code, "code", map[string]interface{}{"language": language})
		return code
	})

	vm.Set("has_final_output", func() bool {
		return final.Has()
	})

	vm.Set("get_final_output", func() interface{} {
		content, kind, ok, metadata := final.Content()
		if !ok {
			return nil
		}
		return map[string]interface{}{
			"content":  content,
			"type":     kind,
			"metadata": metadata,
		}
	})

	vm.Set("clear_final_output", func() {
		final.Clear()
	})
}

// --- path helpers ---------------------------------------------------------

func pathJoin(parts ...string) string {
	return filepath.ToSlash(filepath.Join(parts...))
}

func pathBasename(p string) string {
	return filepath.Base(p)
}

func pathDirname(p string) string {
	return filepath.ToSlash(filepath.Dir(p))
}

func pathExt(p string) string {
	return filepath.Ext(p)
}
