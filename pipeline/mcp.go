package pipeline

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/entrypage/kit"
)

// RegisterMCP registers the entrypage tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	htmlArg := map[string]any{"type": "string", "description": "Complete HTML document"}

	p.registerTool(srv, &mcp.Tool{
		Name:        "entrypage_validate_template",
		Description: "Check that an entry page template carries every injection target (manifest script, sidebar config, video region).",
		InputSchema: inputSchema(map[string]any{"html": htmlArg}, []string{"html"}),
	}, p.validateTemplateEndpoint(), kit.DecodeJSON[HTMLRequest]())

	p.registerTool(srv, &mcp.Tool{
		Name:        "entrypage_canonicalize",
		Description: "Rewrite locally rooted static asset and content URLs to the canonical site origin.",
		InputSchema: inputSchema(map[string]any{"html": htmlArg}, []string{"html"}),
	}, p.canonicalizeEndpoint(), kit.DecodeJSON[HTMLRequest]())

	p.registerTool(srv, &mcp.Tool{
		Name:        "entrypage_sanitize",
		Description: "Remove legacy site-builder markup and normalize contract assets so each appears exactly once.",
		InputSchema: inputSchema(map[string]any{"html": htmlArg}, []string{"html"}),
	}, p.sanitizeEndpoint(), kit.DecodeJSON[HTMLRequest]())

	p.registerTool(srv, &mcp.Tool{
		Name:        "entrypage_verify",
		Description: "Verify a generated entry page against the contract and list every issue.",
		InputSchema: inputSchema(map[string]any{"html": htmlArg}, []string{"html"}),
	}, p.verifyEndpoint(), kit.DecodeJSON[HTMLRequest]())

	p.registerTool(srv, &mcp.Tool{
		Name:        "entrypage_build",
		Description: "Build an entry page from a template and an entry record. With publish=true the verified page is written to the output directory.",
		InputSchema: inputSchema(map[string]any{
			"template": map[string]any{"type": "string", "description": "Template HTML"},
			"entry":    map[string]any{"type": "object", "description": "Entry record in entry.json form"},
			"manifest": map[string]any{"type": "object", "description": "Optional manifest in manifest.json form"},
			"publish":  map[string]any{"type": "boolean", "description": "Write the page (default false)"},
		}, []string{"template", "entry"}),
	}, p.buildEndpoint(), kit.DecodeJSON[BuildRequest]())

	if p.writer != nil {
		p.registerTool(srv, &mcp.Tool{
			Name:        "entrypage_history",
			Description: "List publish attempts for an entry slug, newest first.",
			InputSchema: inputSchema(map[string]any{
				"slug":  map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "description": "Max attempts (default 50)"},
			}, []string{"slug"}),
		}, p.historyEndpoint(), kit.DecodeJSON[HistoryRequest]())
	}
}

func (p *Pipeline) registerTool(srv *mcp.Server, tool *mcp.Tool, ep kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, p.wrap(tool.Name, ep), decode)
}

// wrap applies the endpoint middleware shared by every transport.
func (p *Pipeline) wrap(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(p.logger, name), kit.Recover())(ep)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
