package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/tiddlyhal/internal/apperr"
	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/serializer"
	"github.com/starford/tiddlyhal/internal/tiddlerservice"
)

func renderDocument(ctx context.Context, svc *tiddlerservice.Service, base string, logger *slog.Logger, req RenderRequest) ([]byte, error) {
	hal := func(env serializer.Env) *serializer.HAL {
		env.BaseURI = base
		env.Logger = logger
		return serializer.NewHAL(env).(*serializer.HAL)
	}

	if req.Search != "" {
		hits, err := svc.Search(ctx, req.Search, 50)
		if err != nil {
			return nil, err
		}
		return hal(serializer.Env{Listing: render.ListContext{Mode: render.ListingSearch}}).ListTiddlers(hits)
	}

	if req.Kind == "" {
		switch req.Collection {
		case "":
			return hal(serializer.Env{}).Root()
		case render.KindBag.Collection():
			bags, err := svc.ListBags(ctx)
			if err != nil {
				return nil, err
			}
			return hal(serializer.Env{}).ListBags(bags)
		case render.KindRecipe.Collection():
			recipes, err := svc.ListRecipes(ctx)
			if err != nil {
				return nil, err
			}
			return hal(serializer.Env{}).ListRecipes(recipes)
		}
		return nil, fmt.Errorf("unknown collection %q: %w", req.Collection, apperr.ErrInvalidInput)
	}

	var ref render.ContainerRef
	switch req.Kind {
	case render.KindBag.Singular():
		ref = render.BagRef(req.Name)
	case render.KindRecipe.Singular():
		ref = render.RecipeRef(req.Name)
	default:
		return nil, fmt.Errorf("kind must be bag or recipe, got %q: %w", req.Kind, apperr.ErrInvalidInput)
	}

	switch {
	case req.Title == "":
		if ref.Kind == render.KindRecipe {
			rc, err := svc.GetRecipe(ctx, ref.Name)
			if err != nil {
				return nil, err
			}
			return hal(serializer.Env{}).Recipe(rc)
		}
		b, err := svc.GetBag(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		return hal(serializer.Env{}).Bag(b)
	case req.Revisions:
		revs, err := svc.Revisions(ctx, ref, req.Title)
		if err != nil {
			return nil, err
		}
		env := serializer.Env{Listing: render.ListContext{Mode: render.ListingRevisions, Container: &ref, Title: req.Title}}
		return hal(env).ListTiddlers(revs)
	case req.Revision > 0:
		t, err := svc.Revision(ctx, ref, req.Title, req.Revision)
		if err != nil {
			return nil, err
		}
		return hal(serializer.Env{Revision: true}).Tiddler(t)
	}
	t, err := svc.Tiddler(ctx, ref, req.Title)
	if err != nil {
		return nil, err
	}
	return hal(serializer.Env{}).Tiddler(t)
}
