package agentloop

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func (d *Dispatcher) readFile(args map[string]any) ToolResult {
	raw, _ := GetStringArg(args, "path")
	path := d.resolve(raw)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("File not found: " + path)
		}
		return failure(err.Error())
	}
	if info.IsDir() {
		return failure("Not a file: " + path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return failure(err.Error())
	}
	output := strings.ToValidUTF8(string(data), "\uFFFD")

	if maxLines, ok := GetIntArg(args, "max_lines"); ok && maxLines > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > maxLines {
			output = strings.Join(lines[:maxLines], "\n") +
				fmt.Sprintf("\n... (truncated, showing first %d lines)", maxLines)
		}
	}
	return ToolResult{Success: true, Output: output}
}

func (d *Dispatcher) writeFile(args map[string]any) ToolResult {
	raw, _ := GetStringArg(args, "path")
	content, _ := GetStringArg(args, "content")
	appendMode, _ := GetBoolArg(args, "append")
	path := d.resolve(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failure(fmt.Sprintf("Failed to create directory: %v", err))
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	action := "Wrote"
	if appendMode {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		action = "Appended to"
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return failure(err.Error())
	}
	n, err := f.WriteString(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return failure(err.Error())
	}
	return ToolResult{Success: true, Output: fmt.Sprintf("%s %s (%d bytes)", action, path, n)}
}

func (d *Dispatcher) listDirectory(args map[string]any) ToolResult {
	raw, _ := GetStringArg(args, "path")
	showHidden, _ := GetBoolArg(args, "show_hidden")
	path := d.resolve(raw)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("Directory not found: " + path)
		}
		return failure(err.Error())
	}
	if !info.IsDir() {
		return failure("Not a directory: " + path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return failure(err.Error())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			lines = append(lines, fmt.Sprintf("📁 %s/", name))
			continue
		}
		if fi, err := entry.Info(); err == nil {
			lines = append(lines, fmt.Sprintf("📄 %s (%s)", name, formatSize(fi.Size())))
		} else {
			lines = append(lines, "📄 "+name)
		}
	}

	return ToolResult{
		Success: true,
		Output:  fmt.Sprintf("Directory: %s\n\n%s", path, strings.Join(lines, "\n")),
	}
}

func (d *Dispatcher) changeDirectory(args map[string]any) ToolResult {
	raw, _ := GetStringArg(args, "path")
	path, err := filepath.Abs(d.resolve(raw))
	if err != nil {
		return failure(err.Error())
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("Directory not found: " + path)
		}
		return failure(err.Error())
	}
	if !info.IsDir() {
		return failure("Not a directory: " + path)
	}

	d.session.setWorkingDir(path)
	return ToolResult{Success: true, Output: "Changed directory to: " + path}
}

// formatSize renders a byte count with one decimal, dividing by 1024 per
// unit step.
func formatSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f TB", value)
}
