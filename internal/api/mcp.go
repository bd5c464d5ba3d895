package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/documents"
)

const documentsURI = "docstate://documents"

// NewMCPServer creates an MCP server exposing the documents of set.
func NewMCPServer(set *documents.Set, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"docstate",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docstate: per-user settings, state and history documents stored as JSON files."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("read_document",
			mcp.WithDescription("Read a document, completed with its defaults. Optionally return only the value at a dot path."),
			mcp.WithString("name", mcp.Description("Document name (accounts, settings, state, history)"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Optional dot path, e.g. media.autoLoad")),
		),
		mcpReadDocument(set),
	)

	s.AddTool(
		mcp.NewTool("set_document_value",
			mcp.WithDescription("Set the value at a dot path in a document. The value is parsed as JSON when possible, otherwise stored as a string."),
			mcp.WithString("name", mcp.Description("Document name"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Dot path to update"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value"), mcp.Required()),
		),
		mcpSetDocumentValue(set),
	)

	s.AddTool(
		mcp.NewTool("flush_documents",
			mcp.WithDescription("Write every pending document change to disk now."),
		),
		mcpFlushDocuments(set),
	)

	s.AddResource(
		mcp.NewResource(
			documentsURI,
			"Documents",
			mcp.WithResourceDescription("Registered documents and their file paths"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocuments(set),
	)

	return s
}

func mcpReadDocument(set *documents.Set) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		doc, err := set.JSON(name)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		path := req.GetString("path", "")
		if path == "" {
			text, err := configfile.Encode(doc.Read())
			if err != nil {
				return mcpError(fmt.Sprintf("failed to encode %s: %v", name, err)), nil
			}
			return mcpText(text), nil
		}

		v, ok := doc.Get(path)
		if !ok {
			return mcpError(fmt.Sprintf("no value at %q in %s", path, name)), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal value: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetDocumentValue(set *documents.Set) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		raw, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		doc, err := set.JSON(name)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := doc.Set(path, ParseValue(raw)); err != nil {
			return mcpError(fmt.Sprintf("failed to set %s: %v", path, err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s.%s = %s", name, path, raw)), nil
	}
}

func mcpFlushDocuments(set *documents.Set) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := set.FlushAll(ctx); err != nil {
			return mcpError(fmt.Sprintf("flush failed: %v", err)), nil
		}
		return mcpText("Flushed"), nil
	}
}

func mcpResourceDocuments(set *documents.Set) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type entry struct {
			Name string `json:"name"`
			Path string `json:"path"`
		}

		paths := set.Paths()
		names := set.Names()
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			entries = append(entries, entry{Name: name, Path: paths[name]})
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal documents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// ParseValue interprets raw as JSON (number, bool, null, object, array or
// quoted string) and falls back to the raw string.
func ParseValue(raw string) any {
	var v any
	if err := configfile.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
