package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// toolDef holds a tool's description and parameters; the name comes from
// the registry key.
type toolDef struct {
	description string
	options     []mcp.ToolOption
}

func (d toolDef) build(name string) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(d.description)}, d.options...)
	return mcp.NewTool(name, opts...)
}

var captureToolDef = toolDef{
	description: "Record the newest finished download in the downloads directory together with the page it came from.",
	options: []mcp.ToolOption{
		mcp.WithString("origin_title", mcp.Required(), mcp.Description("Title of the page the file was downloaded from")),
		mcp.WithString("origin_url", mcp.Required(), mcp.Description("URL of the page the file was downloaded from")),
		mcp.WithString("note", mcp.Description("Free-text note stored with the capture")),
		mcp.WithString("source_app", mcp.Description("Application that triggered the download")),
		mcp.WithString("browser", mcp.Description("Browser name (default: safari)")),
		mcp.WithString("downloads_dir", mcp.Description("Directory to look in (default: configured downloads dir)")),
		mcp.WithNumber("within_seconds", mcp.Description("Only consider files modified this recently (default: 60)")),
	},
}

var lookupToolDef = toolDef{
	description: "Hash a file and return every capture of the same content. Captures recorded under another path are updated to this one.",
	options: []mcp.ToolOption{
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to look up")),
		mcp.WithNumber("limit", mcp.Description("Maximum records (default: 20, max: 200)")),
	},
}

var searchToolDef = toolDef{
	description: "Search captures by file name, path, origin title, origin url, or note. An empty query lists the most recent captures. Files that moved are relocated under the scan roots unless no_reconcile is set.",
	options: []mcp.ToolOption{
		mcp.WithString("query", mcp.Description("Free-text query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 20, max: 200)")),
		mcp.WithBoolean("no_reconcile", mcp.Description("Do not look for moved files")),
		mcp.WithArray("scan_roots", mcp.Description("Directories to search for moved files"), mcp.Items(map[string]any{"type": "string"})),
	},
}

var getToolDef = toolDef{
	description: "Fetch one capture by id.",
	options: []mcp.ToolOption{
		mcp.WithString("id", mcp.Required(), mcp.Description("Capture id")),
	},
}

var reindexToolDef = toolDef{
	description: "Drop and rebuild the full-text search index from the stored captures.",
}
