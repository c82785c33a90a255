package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/martinemde/deskagent/unifiedllm"
)

// ToolKind enumerates the fixed set of tools the agent can call.
type ToolKind int

const (
	ToolRunCommand ToolKind = iota
	ToolReadFile
	ToolWriteFile
	ToolListDirectory
	ToolGetCurrentDirectory
	ToolChangeDirectory
	ToolTaskComplete
)

var toolKindNames = [...]string{
	ToolRunCommand:          "run_command",
	ToolReadFile:            "read_file",
	ToolWriteFile:           "write_file",
	ToolListDirectory:       "list_directory",
	ToolGetCurrentDirectory: "get_current_directory",
	ToolChangeDirectory:     "change_directory",
	ToolTaskComplete:        "task_complete",
}

// String returns the wire name of the tool.
func (k ToolKind) String() string {
	if k < 0 || int(k) >= len(toolKindNames) {
		return "unknown"
	}
	return toolKindNames[k]
}

// ParseToolKind maps an externally supplied tool name onto a ToolKind.
func ParseToolKind(name string) (ToolKind, bool) {
	for i, n := range toolKindNames {
		if n == name {
			return ToolKind(i), true
		}
	}
	return 0, false
}

// AllToolKinds returns every tool kind in catalog order.
func AllToolKinds() []ToolKind {
	kinds := make([]ToolKind, len(toolKindNames))
	for i := range toolKindNames {
		kinds[i] = ToolKind(i)
	}
	return kinds
}

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "integer", "boolean" or "array"
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	// Items is the element type of an array parameter.
	Items string `json:"items,omitempty"`
}

// ToolSpec is the planner-facing description of a tool.
type ToolSpec struct {
	Kind        ToolKind    `json:"-"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// JSONSchema renders the parameters as a JSON Schema object. Unknown
// properties are rejected.
func (s ToolSpec) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == "array" && p.Items != "" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

var catalog = []ToolSpec{
	{
		Kind:        ToolRunCommand,
		Name:        ToolRunCommand.String(),
		Description: "Execute a shell command and return the output. Use this to run any command-line operation.",
		Params: []ParamSpec{
			{Name: "command", Type: "string", Description: "The shell command to execute", Required: true},
			{Name: "working_dir", Type: "string", Description: "Directory to run the command in. If not specified, uses the current working directory."},
			{Name: "timeout", Type: "integer", Description: "Maximum time in seconds to wait for the command. Default is 60.", Default: 60},
		},
	},
	{
		Kind:        ToolReadFile,
		Name:        ToolReadFile.String(),
		Description: "Read the contents of a file.",
		Params: []ParamSpec{
			{Name: "path", Type: "string", Description: "Path to the file to read", Required: true},
			{Name: "max_lines", Type: "integer", Description: "Maximum number of lines to read. If not specified, reads entire file."},
		},
	},
	{
		Kind:        ToolWriteFile,
		Name:        ToolWriteFile.String(),
		Description: "Write content to a file. Creates the file and any missing parent directories.",
		Params: []ParamSpec{
			{Name: "path", Type: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
			{Name: "append", Type: "boolean", Description: "If true, append to the file instead of overwriting. Default is false.", Default: false},
		},
	},
	{
		Kind:        ToolListDirectory,
		Name:        ToolListDirectory.String(),
		Description: "List files and directories in a path.",
		Params: []ParamSpec{
			{Name: "path", Type: "string", Description: "Path to the directory to list. Defaults to current working directory."},
			{Name: "show_hidden", Type: "boolean", Description: "Whether to show hidden files (starting with .). Default is false.", Default: false},
		},
	},
	{
		Kind:        ToolGetCurrentDirectory,
		Name:        ToolGetCurrentDirectory.String(),
		Description: "Get the current working directory.",
	},
	{
		Kind:        ToolChangeDirectory,
		Name:        ToolChangeDirectory.String(),
		Description: "Change the current working directory.",
		Params: []ParamSpec{
			{Name: "path", Type: "string", Description: "Path to change to", Required: true},
		},
	},
	{
		Kind:        ToolTaskComplete,
		Name:        ToolTaskComplete.String(),
		Description: "Call this when you have completed the user's task. Provide a summary of what was done.",
		Params: []ParamSpec{
			{Name: "summary", Type: "string", Description: "A summary of what was accomplished", Required: true},
			{Name: "files_modified", Type: "array", Items: "string", Description: "List of files that were created or modified"},
		},
	},
}

// Catalog returns the tool specs in catalog order. The returned slice is a
// copy.
func Catalog() []ToolSpec {
	out := make([]ToolSpec, len(catalog))
	copy(out, catalog)
	return out
}

// LookupTool returns the spec for kind.
func LookupTool(kind ToolKind) ToolSpec {
	return catalog[kind]
}

// ToolDefinitions converts the catalog into planner tool definitions.
func ToolDefinitions() []unifiedllm.ToolDefinition {
	defs := make([]unifiedllm.ToolDefinition, len(catalog))
	for i, spec := range catalog {
		defs[i] = unifiedllm.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.JSONSchema(),
		}
	}
	return defs
}

// ToolResult is the outcome of one tool invocation. A failed result is a
// normal outcome the planner is expected to react to.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// ConversationText renders the result the way it is shown to the planner:
// the output followed by the error, if any.
func (r ToolResult) ConversationText() string {
	if r.Error == "" {
		return r.Output
	}
	return r.Output + "\n\nError: " + r.Error
}

func failure(msg string) ToolResult {
	return ToolResult{Success: false, Error: msg}
}

// ParseToolArguments decodes a raw argument payload. Numbers are kept as
// json.Number so integer parameters survive validation unchanged.
func ParseToolArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return args, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return map[string]any{}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// GetStringArg extracts a string argument.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// GetBoolArg extracts a boolean argument.
func GetBoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetStringSliceArg extracts a list of strings, skipping non-string items.
func GetStringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
