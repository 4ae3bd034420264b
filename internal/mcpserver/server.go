// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tiddlyhal entities as HAL documents for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/hal"
	"github.com/starford/tiddlyhal/internal/models"
	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/serializer"
	"github.com/starford/tiddlyhal/internal/tiddlerservice"
)

// Server wraps the MCP server with tiddlyhal tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *tiddlerservice.Service
	base   string
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered. base prefixes
// every link in returned documents.
func New(svc *tiddlerservice.Service, base string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, base: base, logger: logger}

	s.mcp = server.NewMCPServer(
		"tiddlyhal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	kindArg := mcp.WithString("kind",
		mcp.Required(),
		mcp.Enum(render.KindBag.Singular(), render.KindRecipe.Singular()),
		mcp.Description("Container kind: bag or recipe"),
	)
	nameArg := mcp.WithString("name", mcp.Required(), mcp.Description("Bag or recipe name"))
	titleArg := mcp.WithString("title", mcp.Required(), mcp.Description("Tiddler title"))

	s.mcp.AddTool(mcp.NewTool("get_root",
		mcp.WithDescription("Return the HAL service root linking every collection and the search template."),
	), s.getRoot)

	s.mcp.AddTool(mcp.NewTool("list_bags",
		mcp.WithDescription("List all bags as a HAL collection."),
	), s.listBags)

	s.mcp.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List all recipes as a HAL collection."),
	), s.listRecipes)

	s.mcp.AddTool(mcp.NewTool("get_container",
		mcp.WithDescription("Return one bag or recipe with its description, policy and links."),
		kindArg, nameArg,
	), s.getContainer)

	s.mcp.AddTool(mcp.NewTool("list_tiddlers",
		mcp.WithDescription("List the tiddlers of a bag or recipe. Recipe tiddlers are composed from the recipe's bags."),
		kindArg, nameArg,
	), s.listTiddlers)

	s.mcp.AddTool(mcp.NewTool("get_tiddler",
		mcp.WithDescription("Return one tiddler with its text. Pass revision for a historical version."),
		kindArg, nameArg, titleArg,
		mcp.WithNumber("revision", mcp.Description("Optional revision id (1 is the oldest)")),
	), s.getTiddler)

	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List every stored revision of a tiddler, newest first."),
		kindArg, nameArg, titleArg,
	), s.listRevisions)

	s.mcp.AddTool(mcp.NewTool("search_tiddlers",
		mcp.WithDescription("Full-text search through tiddler titles, tags and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTiddlers)

	s.mcp.AddTool(mcp.NewTool("put_tiddler",
		mcp.WithDescription("Create or update a tiddler in a bag, or through a recipe in the last bag whose filter accepts it. "+
			"Returns the stored tiddler as HAL."),
		kindArg, nameArg, titleArg,
		mcp.WithString("text", mcp.Description("Tiddler text; base64 for binary types")),
		mcp.WithString("type", mcp.Description("Content type, e.g. text/x-markdown; empty for plain text")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
		mcp.WithString("modifier", mcp.Description("Who is making the change")),
	), s.putTiddler)

	s.mcp.AddTool(mcp.NewTool("expand_link",
		mcp.WithDescription("Expand a templated href from a returned document, e.g. tiddlyweb:tiddler or tiddlyweb:search."),
		mcp.WithString("href", mcp.Required(), mcp.Description("Templated href")),
		mcp.WithObject("variables", mcp.Description("Template variables, e.g. {\"tiddler\": \"HelloThere\"}")),
	), s.expandLink)

	s.mcp.AddTool(mcp.NewTool("get_relations",
		mcp.WithDescription("Describe the link relations used in returned HAL documents."),
	), s.getRelations)

	s.mcp.AddResource(
		mcp.NewResource(RelationsURI, "Link relations",
			mcp.WithResourceDescription("Link relations and embedding keys of tiddlyhal HAL documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRelationsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) hal(env serializer.Env) *serializer.HAL {
	env.BaseURI = s.base
	env.Logger = s.logger
	return serializer.NewHAL(env).(*serializer.HAL)
}

// result turns a rendered document or an error into a tool result.
func result(body []byte, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func containerArg(req mcp.CallToolRequest) (render.ContainerRef, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return render.ContainerRef{}, err
	}
	name, err := req.RequireString("name")
	if err != nil {
		return render.ContainerRef{}, err
	}
	switch kind {
	case render.KindBag.Singular():
		return render.BagRef(name), nil
	case render.KindRecipe.Singular():
		return render.RecipeRef(name), nil
	}
	return render.ContainerRef{}, fmt.Errorf("kind must be bag or recipe, got %q: %w", kind, apperr.ErrInvalidInput)
}

func (s *Server) getRoot(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.hal(serializer.Env{}).Root())
}

func (s *Server) listBags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bags, err := s.svc.ListBags(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return result(s.hal(serializer.Env{}).ListBags(bags))
}

func (s *Server) listRecipes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipes, err := s.svc.ListRecipes(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return result(s.hal(serializer.Env{}).ListRecipes(recipes))
}

func (s *Server) getContainer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := containerArg(req)
	if err != nil {
		return toolError(err), nil
	}
	if ref.Kind == render.KindRecipe {
		rc, err := s.svc.GetRecipe(ctx, ref.Name)
		if err != nil {
			return toolError(err), nil
		}
		return result(s.hal(serializer.Env{}).Recipe(rc))
	}
	b, err := s.svc.GetBag(ctx, ref.Name)
	if err != nil {
		return toolError(err), nil
	}
	return result(s.hal(serializer.Env{}).Bag(b))
}

func (s *Server) listTiddlers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := containerArg(req)
	if err != nil {
		return toolError(err), nil
	}
	tiddlers, err := s.svc.Tiddlers(ctx, ref)
	if err != nil {
		return toolError(err), nil
	}
	env := serializer.Env{Listing: render.ListContext{Mode: render.ListingPlain, Container: &ref}}
	return result(s.hal(env).ListTiddlers(tiddlers))
}

func (s *Server) getTiddler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := containerArg(req)
	if err != nil {
		return toolError(err), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return toolError(err), nil
	}
	if rev := req.GetInt("revision", 0); rev > 0 {
		t, err := s.svc.Revision(ctx, ref, title, rev)
		if err != nil {
			return toolError(err), nil
		}
		return result(s.hal(serializer.Env{Revision: true}).Tiddler(t))
	}
	t, err := s.svc.Tiddler(ctx, ref, title)
	if err != nil {
		return toolError(err), nil
	}
	return result(s.hal(serializer.Env{}).Tiddler(t))
}

func (s *Server) listRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := containerArg(req)
	if err != nil {
		return toolError(err), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return toolError(err), nil
	}
	revs, err := s.svc.Revisions(ctx, ref, title)
	if err != nil {
		return toolError(err), nil
	}
	env := serializer.Env{Listing: render.ListContext{Mode: render.ListingRevisions, Container: &ref, Title: title}}
	return result(s.hal(env).ListTiddlers(revs))
}

func (s *Server) searchTiddlers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return toolError(err), nil
	}
	hits, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	env := serializer.Env{Listing: render.ListContext{Mode: render.ListingSearch}}
	return result(s.hal(env).ListTiddlers(hits))
}

func (s *Server) putTiddler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := containerArg(req)
	if err != nil {
		return toolError(err), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return toolError(err), nil
	}
	t := models.Tiddler{
		Title:    title,
		Type:     req.GetString("type", ""),
		Tags:     req.GetStringSlice("tags", nil),
		Modifier: req.GetString("modifier", ""),
		Text:     []byte(req.GetString("text", "")),
	}
	if models.EncodingForType(t.Type) == models.EncodingBinary {
		raw, err := base64.StdEncoding.DecodeString(string(t.Text))
		if err != nil {
			return mcp.NewToolResultError("binary text must be base64"), nil
		}
		t.Text = raw
	}
	stored, err := s.svc.PutTiddler(ctx, ref, t)
	if err != nil {
		return toolError(err), nil
	}
	return result(s.hal(serializer.Env{}).Tiddler(stored))
}

func (s *Server) expandLink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	href, err := req.RequireString("href")
	if err != nil {
		return toolError(err), nil
	}
	link, err := hal.NewLink("template", href, hal.Attrs{"templated": true})
	if err != nil {
		return toolError(err), nil
	}
	vars := map[string]string{}
	if raw, ok := req.GetArguments()["variables"].(map[string]any); ok {
		for k, v := range raw {
			vars[k] = fmt.Sprint(v)
		}
	}
	uri, err := link.Expand(vars)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(uri), nil
}

func (s *Server) getRelations(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RelationsContract), nil
}

func (s *Server) readRelationsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RelationsURI,
			MIMEType: "text/markdown",
			Text:     RelationsContract,
		},
	}, nil
}
