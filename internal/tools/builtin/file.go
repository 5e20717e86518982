package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/tools"
)

// FileTools builds the file suite anchored at workspace: file_read,
// file_write, file_list, file_search. Relative paths resolve against
// the workspace; absolute paths are used as given.
func FileTools(workspace string) []tools.Tool {
	return []tools.Tool{
		fileReadTool(workspace),
		fileWriteTool(workspace),
		fileListTool(workspace),
		fileSearchTool(workspace),
	}
}

func resolvePath(workspace, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.Validation("path", "must not be empty")
	}
	if !filepath.IsAbs(p) && workspace != "" {
		p = filepath.Join(workspace, p)
	}
	return filepath.Abs(p)
}

func readErr(path string, err error) error {
	if os.IsNotExist(err) {
		return errors.Permanent(errors.CodeFileNotFound, "file not found: "+path)
	}
	return errors.System(errors.CodeFileReadFailed, "read failed: "+err.Error())
}

func fileReadTool(workspace string) tools.Tool {
	schema := tools.NewSchema("file_read", "Read the contents of a file").
		AddParam("path", "string", "file path, relative to the workspace or absolute", true).
		AddParam("offset", "integer", "line to start reading from (0-based)", false).
		AddParam("limit", "integer", "maximum number of lines to return", false).
		Build()

	return tools.NewFunc(schema, func(_ context.Context, call *tools.Call) (*tools.Result, error) {
		path, _ := tools.StringParam(call.Params, "path")
		absPath, err := resolvePath(workspace, path)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			return tools.NewErrorResult(readErr(absPath, err)), nil
		}

		lines := strings.Split(string(content), "\n")
		total := len(lines)

		if offset, ok := tools.IntParam(call.Params, "offset"); ok && offset > 0 {
			if offset >= len(lines) {
				lines = nil
			} else {
				lines = lines[offset:]
			}
		}
		if limit, ok := tools.IntParam(call.Params, "limit"); ok && limit > 0 && limit < len(lines) {
			lines = lines[:limit]
		}

		return tools.NewSuccessResult(map[string]any{
			"path":    absPath,
			"content": strings.Join(lines, "\n"),
			"lines":   len(lines),
			"total":   total,
		}), nil
	})
}

func fileWriteTool(workspace string) tools.Tool {
	schema := tools.NewSchema("file_write", "Write content to a file, creating parent directories").
		AddParam("path", "string", "file path, relative to the workspace or absolute", true).
		AddParam("content", "string", "content to write", true).
		Build()

	return tools.NewFunc(schema, func(_ context.Context, call *tools.Call) (*tools.Result, error) {
		path, _ := tools.StringParam(call.Params, "path")
		content, ok := tools.StringParam(call.Params, "content")
		if !ok {
			return tools.NewErrorResult(errors.Validation("content", "must be a string")), nil
		}

		absPath, err := resolvePath(workspace, path)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return tools.NewErrorResult(errors.System(errors.CodeFileWriteFailed,
				"mkdir failed: "+err.Error())), nil
		}
		if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
			return tools.NewErrorResult(errors.System(errors.CodeFileWriteFailed,
				"write failed: "+err.Error())), nil
		}

		return tools.NewSuccessResult(map[string]any{
			"path": absPath,
			"size": len(content),
		}), nil
	})
}

func fileListTool(workspace string) tools.Tool {
	schema := tools.NewSchema("file_list", "List the contents of a directory").
		AddParam("path", "string", "directory path; defaults to the workspace", false).
		AddParam("recursive", "boolean", "descend into subdirectories", false).
		Build()

	return tools.NewFunc(schema, func(_ context.Context, call *tools.Call) (*tools.Result, error) {
		path, _ := tools.StringParam(call.Params, "path")
		if path == "" {
			path = "."
		}
		recursive, _ := tools.BoolParam(call.Params, "recursive")

		absPath, err := resolvePath(workspace, path)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return tools.NewErrorResult(readErr(absPath, err)), nil
		}
		if !info.IsDir() {
			return tools.NewSuccessResult(map[string]any{
				"type": "file",
				"path": absPath,
			}), nil
		}

		entries := []map[string]any{}
		walkErr := filepath.Walk(absPath, func(filePath string, info os.FileInfo, err error) error {
			if err != nil || filePath == absPath {
				return nil
			}
			if info.IsDir() && skippedDir(filepath.Base(filePath)) {
				return filepath.SkipDir
			}
			entries = append(entries, map[string]any{
				"path":     filePath,
				"name":     filepath.Base(filePath),
				"dir":      info.IsDir(),
				"size":     info.Size(),
				"modified": info.ModTime().Unix(),
			})
			// A listed directory is not descended into unless recursive.
			if !recursive && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		})
		if walkErr != nil {
			return tools.NewErrorResult(errors.System(errors.CodeFileReadFailed,
				"list failed: "+walkErr.Error())), nil
		}

		return tools.NewSuccessResult(map[string]any{
			"type":    "directory",
			"path":    absPath,
			"count":   len(entries),
			"entries": entries,
		}), nil
	})
}

func fileSearchTool(workspace string) tools.Tool {
	schema := tools.NewSchema("file_search", "Search files for a literal text pattern").
		AddParam("path", "string", "directory or file to search; defaults to the workspace", false).
		AddParam("pattern", "string", "literal text to look for", true).
		AddParam("recursive", "boolean", "descend into subdirectories (default true)", false).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		pattern, _ := tools.StringParam(call.Params, "pattern")
		if pattern == "" {
			return tools.NewErrorResult(errors.Validation("pattern", "must not be empty")), nil
		}
		path, _ := tools.StringParam(call.Params, "path")
		if path == "" {
			path = "."
		}
		recursive := true
		if r, ok := tools.BoolParam(call.Params, "recursive"); ok {
			recursive = r
		}

		absPath, err := resolvePath(workspace, path)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}

		results := []map[string]any{}
		walkErr := filepath.Walk(absPath, func(filePath string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if info.IsDir() {
				if skippedDir(filepath.Base(filePath)) && filePath != absPath {
					return filepath.SkipDir
				}
				if !recursive && filePath != absPath {
					return filepath.SkipDir
				}
				return nil
			}
			if isBinaryExt(strings.ToLower(filepath.Ext(filePath))) {
				return nil
			}

			content, err := os.ReadFile(filePath)
			if err != nil {
				return nil
			}
			if !strings.Contains(string(content), pattern) {
				return nil
			}

			var matched []int
			for i, line := range strings.Split(string(content), "\n") {
				if strings.Contains(line, pattern) {
					matched = append(matched, i+1)
				}
			}
			results = append(results, map[string]any{
				"path":    filePath,
				"matches": len(matched),
				"lines":   matched,
			})
			return nil
		})
		if walkErr != nil {
			return tools.NewErrorResult(errors.System(errors.CodeFileReadFailed,
				"search failed: "+walkErr.Error())), nil
		}

		return tools.NewSuccessResult(map[string]any{
			"pattern": pattern,
			"path":    absPath,
			"count":   len(results),
			"results": results,
		}), nil
	})
}

func skippedDir(name string) bool {
	switch name {
	case "node_modules", "vendor", ".git", ".idea":
		return true
	}
	return false
}

func isBinaryExt(ext string) bool {
	switch ext {
	case ".exe", ".dll", ".so", ".dylib", ".bin", ".dat",
		".png", ".jpg", ".jpeg", ".gif", ".ico", ".bmp", ".webp",
		".pdf", ".zip", ".tar", ".gz", ".7z", ".rar",
		".mp3", ".mp4", ".wav", ".avi", ".mov", ".wmv",
		".ttf", ".otf", ".woff", ".woff2":
		return true
	}
	return false
}
