package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// maxReadBytes caps file reads so a single tool call cannot flood the
// transcript with megabytes of content.
const maxReadBytes = 256 * 1024

type readFileArgs struct {
	Path string `json:"path" mapstructure:"path" description:"Path of the file to read, relative to the sandbox root"`
}

type writeFileArgs struct {
	Path    string `json:"path" mapstructure:"path" description:"Path of the file to write, relative to the sandbox root"`
	Content string `json:"content" mapstructure:"content" description:"Content to write to the file"`
}

type listDirArgs struct {
	Path string `json:"path,omitempty" mapstructure:"path" description:"Directory to list, relative to the sandbox root (defaults to the root)"`
}

// NewFileTools returns the file management tools rooted at sandboxDir. Every
// path argument is resolved inside the sandbox; attempts to escape it fail
// with a validation error. The sandbox directory is created on first use.
func NewFileTools(sandboxDir string) []Tool {
	readTool := NewFunctionToolFromStruct(
		"read_file",
		"Read the contents of a file in the sandbox directory",
		readFileArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in readFileArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			path, err := resolveSandboxPath(sandboxDir, in.Path)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", in.Path, err)
			}
			if len(data) > maxReadBytes {
				data = data[:maxReadBytes]
			}
			return string(data), nil
		},
	)

	writeTool := NewFunctionToolFromStruct(
		"write_file",
		"Write content to a file in the sandbox directory, creating it if needed",
		writeFileArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in writeFileArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			path, err := resolveSandboxPath(sandboxDir, in.Path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("create parent directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", in.Path, err)
			}
			return fmt.Sprintf("File written successfully to %s.", in.Path), nil
		},
	)

	listTool := NewFunctionToolFromStruct(
		"list_directory",
		"List the files and directories in a sandbox directory",
		listDirArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in listDirArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			path, err := resolveSandboxPath(sandboxDir, in.Path)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				if os.IsNotExist(err) && in.Path == "" {
					return "No files found.", nil
				}
				return "", fmt.Errorf("list %s: %w", in.Path, err)
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)

			if len(names) == 0 {
				return "No files found.", nil
			}
			return strings.Join(names, "\n"), nil
		},
	)

	return []Tool{readTool, writeTool, listTool}
}

// resolveSandboxPath joins rel onto the sandbox root and rejects any path
// that resolves outside of it.
func resolveSandboxPath(sandboxDir, rel string) (string, error) {
	root, err := filepath.Abs(sandboxDir)
	if err != nil {
		return "", err
	}

	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", &ToolError{
			Tool:    "file",
			Message: fmt.Sprintf("path %q must be relative to the sandbox directory", rel),
			Code:    CodeValidationError,
		}
	}

	joined := filepath.Join(root, filepath.FromSlash(rel))
	cleaned := filepath.Clean(joined)

	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", &ToolError{
			Tool:    "file",
			Message: fmt.Sprintf("path %q escapes the sandbox directory", rel),
			Code:    CodeValidationError,
		}
	}
	return cleaned, nil
}
