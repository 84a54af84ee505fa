package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchProductsTool = mcp.NewTool("search_products",
	mcp.WithDescription("Search a company's product catalog semantically. Returns the closest catalog rows."),
	mcp.WithString("company_id",
		mcp.Required(),
		mcp.Description("Company whose catalog is searched"),
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)

var validateWorkflowTool = mcp.NewTool("validate_workflow",
	mcp.WithDescription("Compile a workflow definition and report whether it can be enabled."),
	mcp.WithString("workflow",
		mcp.Required(),
		mcp.Description("Workflow JSON with nodes, each holding typed blocks, and an optional except_case"),
	),
)

var previewPersonalityTool = mcp.NewTool("preview_personality",
	mcp.WithDescription("Render the system prompt a chatbot personality produces."),
	mcp.WithString("personality",
		mcp.Description("Personality JSON (bot_name, bot_prompt, tone, ...). Omit for the default prompt."),
	),
)
