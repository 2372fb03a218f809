// Package menu loads dish definitions and seeds them into a workspace.
//
// Menu files are YAML (.yaml, .yml), JSON (.json) or JSON with comments
// (.jsonc). All three share one shape:
//
//	dishes:
//	  - name: Pad Thai
//	    prep_minutes: 12
//	    ingredients: [Peanuts, Eggs, Shrimp]
package menu

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/me/brigade/pkg/model"
)

//go:embed default_menu.yaml
var defaultMenu []byte

// ErrAlreadySeeded is returned by Seed when the workspace already has dishes.
var ErrAlreadySeeded = errors.New("workspace already has a menu")

type document struct {
	Dishes []model.Dish `yaml:"dishes"`
}

// Default returns the built-in ten-dish menu.
func Default() []model.Dish {
	dishes, err := Parse(defaultMenu, ".yaml")
	if err != nil {
		panic("menu: built-in menu is invalid: " + err.Error())
	}
	return dishes
}

// Load reads a menu file, choosing the format by extension.
func Load(path string) ([]model.Dish, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	dishes, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("menu %s: %w", path, err)
	}
	return dishes, nil
}

// Parse decodes a menu document. ext selects the format and includes the
// leading dot.
func Parse(data []byte, ext string) ([]model.Dish, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
	case ".jsonc":
		data = jsonc.ToJSON(data)
	default:
		return nil, fmt.Errorf("unsupported menu format %q", ext)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(doc.Dishes) == 0 {
		return nil, errors.New("menu has no dishes")
	}
	for i := range doc.Dishes {
		if errs := doc.Dishes[i].Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("dish %d (%q): %s", i, doc.Dishes[i].Name, errs[0].Message)
		}
	}
	return doc.Dishes, nil
}

// Repository is the slice of the store seeding needs.
type Repository interface {
	ListDishes(ctx context.Context, workspaceID string) ([]*model.Dish, error)
	CreateDish(ctx context.Context, dish *model.Dish) error
}

// Seed stores dishes as the menu of workspaceID, assigning fresh IDs. It
// refuses to touch a workspace that already has any dish.
func Seed(ctx context.Context, repo Repository, workspaceID string, dishes []model.Dish) ([]*model.Dish, error) {
	existing, err := repo.ListDishes(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadySeeded
	}

	created := make([]*model.Dish, 0, len(dishes))
	for _, d := range dishes {
		dish := d
		dish.ID = model.NewDishID()
		dish.WorkspaceID = workspaceID
		dish.Ingredients = append([]string(nil), d.Ingredients...)
		if err := repo.CreateDish(ctx, &dish); err != nil {
			return created, fmt.Errorf("create dish %q: %w", dish.Name, err)
		}
		created = append(created, &dish)
	}
	return created, nil
}
