package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// identifierPattern approximates the ASCII subset of Python's
// str.isidentifier(), which the original bootstrap.py uses to validate
// set_var names, and additionally accepts '$' as JavaScript does;
// JavaScript identifier rules are a superset of this, so
// anything accepted here is also a legal goja global binding name.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsValidIdentifier reports whether name is safe to bind as a namespace
// variable name.
func IsValidIdentifier(name string) bool {
	return name != "" && identifierPattern.MatchString(name)
}

// Namespace is the process-lifetime mapping from identifier to value
// available to evaluated code. It wraps a single, persistent goja.Runtime
// — unlike the teacher's per-request worker VM, this one survives across
// every "execute" call, which is what lets a user-defined variable remain
// visible in later calls (spec.md §3, §4.4).
type Namespace struct {
	vm *goja.Runtime

	preloaded   map[string]struct{}
	userDefined map[string]struct{}

	capture *bytes.Buffer
}

// NewNamespace creates a namespace with all preloaded helper bindings
// installed, wired to ch for any helper that needs to call back into the
// host, and to cfg for the offline-testing toggles (§4.8).
func NewNamespace(ch *Channel, cfg HelperConfig, final *FinalOutput) *Namespace {
	vm := goja.New()
	capture := &bytes.Buffer{}

	ns := &Namespace{
		vm:          vm,
		preloaded:   make(map[string]struct{}),
		userDefined: make(map[string]struct{}),
		capture:     capture,
	}

	installOutputBindings(vm, capture)
	installPathBindings(vm)
	installHelperRegistry(vm, ch, cfg, final)

	for _, name := range preloadedNames() {
		ns.preloaded[name] = struct{}{}
	}

	return ns
}

// installOutputBindings binds print/console.* to the per-evaluation capture
// buffer. Because goja exposes no raw file descriptors to user code unless
// explicitly bound (and this worker never binds one), user code has no path
// to the real, captured frame stream — the invariant in spec.md §4.1 holds
// structurally rather than by convention.
func installOutputBindings(vm *goja.Runtime, capture *bytes.Buffer) {
	write := func(args ...goja.Value) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		capture.WriteString(strings.Join(parts, " "))
		capture.WriteByte('\n')
	}

	vm.Set("print", func(args ...goja.Value) { write(args...) })
	vm.Set("console", map[string]interface{}{
		"log":   func(args ...goja.Value) { write(args...) },
		"info":  func(args ...goja.Value) { write(args...) },
		"warn":  func(args ...goja.Value) { write(args...) },
		"error": func(args ...goja.Value) { write(args...) },
	})
}

// installPathBindings preloads a small "path" object, the port's analogue
// of bootstrap.py preloading Python's pathlib module.
func installPathBindings(vm *goja.Runtime) {
	vm.Set("path", map[string]interface{}{
		"join":     pathJoin,
		"basename": pathBasename,
		"dirname":  pathDirname,
		"ext":      pathExt,
	})
}

// SetVar stores a string value under name, visible to subsequent
// evaluations and to get_var/list_vars.
func (ns *Namespace) SetVar(name, value string) error {
	if !IsValidIdentifier(name) {
		return fmt.Errorf("invalid variable name: %s", name)
	}
	if err := ns.vm.GlobalObject().Set(name, value); err != nil {
		return err
	}
	ns.userDefined[name] = struct{}{}
	return nil
}

// GetVar retrieves the current value of name, optionally sliced, returning
// the pre-slice length and the pre-slice type tag.
func (ns *Namespace) GetVar(name string, start, end int, asRepr bool) (value string, length int, typeName string, err error) {
	v := ns.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return "", 0, "", fmt.Errorf("variable '%s' not found", name)
	}

	exported := v.Export()
	typeName = pyTypeName(exported)
	length = valueLength(exported)

	sliced := exported
	if start != 0 || end != 0 {
		sliced = sliceValue(exported, start, end)
	}

	if asRepr {
		value = reprOf(sliced)
	} else {
		value = strOf(sliced)
	}
	return value, length, typeName, nil
}

// ListVars returns the user-defined entries: names that are neither
// underscore-prefixed nor part of the preloaded/helper set.
func (ns *Namespace) ListVars() []VarEntry {
	names := make([]string, 0, len(ns.userDefined))
	for name := range ns.userDefined {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, ok := ns.preloaded[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]VarEntry, 0, len(names))
	for _, name := range names {
		v := ns.vm.GlobalObject().Get(name)
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		exported := v.Export()
		entry := VarEntry{Name: name, Type: pyTypeName(exported)}
		if l, ok := tryLength(exported); ok {
			entry.Length = &l
		}
		if s, ok := trySize(exported); ok {
			entry.Size = &s
		}
		entries = append(entries, entry)
	}
	return entries
}

// VarEntry is one list_vars entry.
type VarEntry struct {
	Name   string
	Type   string
	Length *int
	Size   *int
}

// reconcile walks the runtime's global object after an evaluation and
// records every newly-bound or user-defined name — a direct analogue of
// REPLNamespace.update_from_exec in the original bootstrap.py: names
// starting with "_" are never surfaced, and names in the preloaded/helper
// set are never surfaced either.
func (ns *Namespace) reconcile() {
	for _, name := range ns.vm.GlobalObject().Keys() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, ok := ns.preloaded[name]; ok {
			continue
		}
		ns.userDefined[name] = struct{}{}
	}
}

// Runtime exposes the underlying goja runtime, for wiring the CPU-limit
// interrupt and for tests that need to poke at bindings directly.
func (ns *Namespace) Runtime() *goja.Runtime {
	return ns.vm
}

// resetCapture clears the per-evaluation output buffer and returns its
// prior contents.
func (ns *Namespace) resetCapture() string {
	s := ns.capture.String()
	ns.capture.Reset()
	return s
}

// --- type/repr conversions -------------------------------------------------
//
// The wire protocol's "type" and repr/str conventions were pinned by
// spec.md's literal scenarios against the Python implementation this spec
// was distilled from (e.g. type:"str", return_value:"'hello'"). They are
// kept Python-flavored here even though the evaluated language is
// JavaScript, because the host on the other end of the pipe depends on
// this exact wire shape, not on the scripting language underneath it.

func pyTypeName(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NoneType"
	case string:
		return "str"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return "int"
		}
		return "float"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	case func(goja.FunctionCall) goja.Value:
		return "function"
	default:
		return "object"
	}
}

func valueLength(v interface{}) int {
	l, _ := tryLength(v)
	return l
}

func tryLength(v interface{}) (int, bool) {
	switch val := v.(type) {
	case string:
		return len([]rune(val)), true
	case []interface{}:
		return len(val), true
	case map[string]interface{}:
		return len(val), true
	default:
		return 0, false
	}
}

// trySize is a best-effort, non-additive byte estimate — spec.md §9 notes
// this is not meant to deep-walk nested structures.
func trySize(v interface{}) (int, bool) {
	switch val := v.(type) {
	case string:
		return len(val), true
	case []interface{}:
		return len(val) * 8, true
	case map[string]interface{}:
		return len(val) * 16, true
	default:
		return 0, false
	}
}

func sliceValue(v interface{}, start, end int) interface{} {
	switch val := v.(type) {
	case string:
		runes := []rune(val)
		s, e := clampRange(start, end, len(runes))
		return string(runes[s:e])
	case []interface{}:
		s, e := clampRange(start, end, len(val))
		return val[s:e]
	default:
		return v
	}
}

func clampRange(start, end, total int) (int, int) {
	s := clampIndex(start, total)
	e := total
	if end != 0 {
		e = clampIndex(end, total)
	}
	if s > e {
		s = e
	}
	return s, e
}

func clampIndex(i, total int) int {
	if i < 0 {
		i += total
	}
	if i < 0 {
		i = 0
	}
	if i > total {
		i = total
	}
	return i
}

func strOf(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return reprOf(v)
}

func reprOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return pyReprString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []interface{}:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = reprOf(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(val))
		for _, k := range keys {
			parts = append(parts, pyReprString(k)+": "+reprOf(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

func pyReprString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
