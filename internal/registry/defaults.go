package registry

// Default is the compiled-in operation table. It deliberately preserves
// ambiguous entries such as renameFile/moveFile/editFile all routing to the
// same replace_lines tool: that is upstream's concern, not this table's.
var Default = []Mapping{
	// code_operations -> serena
	{Category: "code_operations", Operation: "findSymbol", UpstreamName: "serena", UpstreamTool: "find_symbol", Cacheable: true, Description: "Locate a symbol definition by name path"},
	{Category: "code_operations", Operation: "findReferences", UpstreamName: "serena", UpstreamTool: "find_referencing_symbols", Cacheable: true, Description: "Find all references to a symbol"},
	{Category: "code_operations", Operation: "getSymbolsOverview", UpstreamName: "serena", UpstreamTool: "get_symbols_overview", Cacheable: true, Description: "List the top-level symbols in a file"},
	{Category: "code_operations", Operation: "readFile", UpstreamName: "serena", UpstreamTool: "read_file", Cacheable: true, Description: "Read a file's contents"},
	{Category: "code_operations", Operation: "renameFile", UpstreamName: "serena", UpstreamTool: "replace_lines", Cacheable: false, Description: "Rename a file"},
	{Category: "code_operations", Operation: "moveFile", UpstreamName: "serena", UpstreamTool: "replace_lines", Cacheable: false, Description: "Move a file to a new path"},
	{Category: "code_operations", Operation: "editFile", UpstreamName: "serena", UpstreamTool: "replace_lines", Cacheable: false, Description: "Replace a line range in a file"},
	{Category: "code_operations", Operation: "searchPattern", UpstreamName: "serena", UpstreamTool: "search_for_pattern", Cacheable: true, Description: "Search the project for a regex pattern"},

	// documentation_lookup -> context7
	{Category: "documentation_lookup", Operation: "resolveLibrary", UpstreamName: "context7", UpstreamTool: "resolve-library-id", Cacheable: true, Description: "Resolve a package name to a documentation library id"},
	{Category: "documentation_lookup", Operation: "getLibraryDocs", UpstreamName: "context7", UpstreamTool: "get-library-docs", Cacheable: true, Description: "Fetch documentation for a resolved library id"},

	// browser_testing -> playwright
	{Category: "browser_testing", Operation: "navigate", UpstreamName: "playwright", UpstreamTool: "browser_navigate", Cacheable: false, Description: "Navigate the browser to a URL"},
	{Category: "browser_testing", Operation: "snapshot", UpstreamName: "playwright", UpstreamTool: "browser_snapshot", Cacheable: false, Description: "Capture an accessibility snapshot of the page"},
	{Category: "browser_testing", Operation: "click", UpstreamName: "playwright", UpstreamTool: "browser_click", Cacheable: false, Description: "Click an element on the page"},
	{Category: "browser_testing", Operation: "fill", UpstreamName: "playwright", UpstreamTool: "browser_fill_form", Cacheable: false, Description: "Fill form fields on the page"},
	{Category: "browser_testing", Operation: "screenshot", UpstreamName: "playwright", UpstreamTool: "browser_take_screenshot", Cacheable: false, Description: "Take a screenshot of the current page"},

	// web_research -> tavily
	{Category: "web_research", Operation: "search", UpstreamName: "tavily", UpstreamTool: "tavily-search", Cacheable: true, Description: "Run a web search query"},
	{Category: "web_research", Operation: "extract", UpstreamName: "tavily", UpstreamTool: "tavily-extract", Cacheable: true, Description: "Extract the readable content of a URL"},

	// ui_components -> shadcn
	{Category: "ui_components", Operation: "listComponents", UpstreamName: "shadcn", UpstreamTool: "list_components", Cacheable: true, Description: "List available component names"},
	{Category: "ui_components", Operation: "getComponentSource", UpstreamName: "shadcn", UpstreamTool: "get_component", Cacheable: true, Description: "Fetch a component's source"},
	{Category: "ui_components", Operation: "getComponentDemo", UpstreamName: "shadcn", UpstreamTool: "get_component_demo", Cacheable: true, Description: "Fetch a component's usage example"},
}
