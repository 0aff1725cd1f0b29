package worker

import "sync"

// FinalOutput is the single-slot register that evaluated code writes to
// via FINAL()/FINAL_VAR()/FINAL_JSON()/FINAL_CODE() to mark that the task
// is complete (spec.md §4.6). Only the most recent call wins; earlier
// calls within the same process lifetime are overwritten, matching the
// "last write wins, no history kept" resolution in spec.md's Open
// Questions.
type FinalOutput struct {
	mu       sync.Mutex
	hasValue bool
	content  string
	kind     string
	metadata map[string]interface{}
}

// Set records content as the final output, overwriting any previous call.
func (f *FinalOutput) Set(content, kind string, metadata map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasValue = true
	f.content = content
	f.kind = kind
	f.metadata = metadata
}

// Clear discards any recorded final output.
func (f *FinalOutput) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasValue = false
	f.content = ""
	f.kind = ""
	f.metadata = nil
}

// Has reports whether a final output has been recorded.
func (f *FinalOutput) Has() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasValue
}

// Content returns the recorded final output content, the kind tag
// ("text", "json", or "code"), whether a value is currently recorded
// (false again after Clear), and a copy of any attached metadata.
func (f *FinalOutput) Content() (content, kind string, ok bool, metadata map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metadata != nil {
		metadata = make(map[string]interface{}, len(f.metadata))
		for k, v := range f.metadata {
			metadata[k] = v
		}
	}
	return f.content, f.kind, f.hasValue, metadata
}
