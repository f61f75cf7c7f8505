package resolver

import (
	"github.com/go-playground/validator/v10"
	graphql "github.com/graph-gophers/graphql-go"
	"nomnom-api/backend/internal/schema"
)

type actorInput struct {
	Name string `json:"name" validate:"required,max=200"`
}

type movieInput struct {
	Title string `json:"title" validate:"required,max=300"`
}

type createUserInput struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
}

type updateUserInput struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

type createRecipeInput struct {
	Name           string      `json:"name" validate:"required,max=200"`
	Ingredients    []string    `json:"ingredients" validate:"min=1,dive,required"`
	IngredientsQty []string    `json:"ingredients_qty" validate:"min=1,dive,required"`
	Serving        float64     `json:"serving" validate:"gt=0"`
	TimeTakenMins  float64     `json:"time_taken_mins" validate:"gte=0"`
	ThumbnailURL   string      `json:"thumbnail_url" validate:"required,url"`
	Contents       string      `json:"contents" validate:"required"`
	OwnerID        *graphql.ID `json:"ownerId"`
}

type updateRecipeInput struct {
	Name           *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Ingredients    *[]string `json:"ingredients" validate:"omitempty,min=1,dive,required"`
	IngredientsQty *[]string `json:"ingredients_qty" validate:"omitempty,min=1,dive,required"`
	Serving        *float64  `json:"serving" validate:"omitempty,gt=0"`
	TimeTakenMins  *float64  `json:"time_taken_mins" validate:"omitempty,gte=0"`
	ThumbnailURL   *string   `json:"thumbnail_url" validate:"omitempty,url"`
	Contents       *string   `json:"contents" validate:"omitempty,min=1"`
}

type chatMessageInput struct {
	Content   string `json:"content" validate:"required,max=10000"`
	SessionID string `json:"sessionId" validate:"required"`
}

func (in createRecipeInput) props() map[string]interface{} {
	return map[string]interface{}{
		"name":            in.Name,
		"ingredients":     in.Ingredients,
		"ingredients_qty": in.IngredientsQty,
		"serving":         in.Serving,
		"time_taken_mins": in.TimeTakenMins,
		"thumbnail_url":   in.ThumbnailURL,
		"contents":        in.Contents,
	}
}

func (in updateRecipeInput) props() map[string]interface{} {
	props := map[string]interface{}{}
	if in.Name != nil {
		props["name"] = *in.Name
	}
	if in.Ingredients != nil {
		props["ingredients"] = *in.Ingredients
	}
	if in.IngredientsQty != nil {
		props["ingredients_qty"] = *in.IngredientsQty
	}
	if in.Serving != nil {
		props["serving"] = *in.Serving
	}
	if in.TimeTakenMins != nil {
		props["time_taken_mins"] = *in.TimeTakenMins
	}
	if in.ThumbnailURL != nil {
		props["thumbnail_url"] = *in.ThumbnailURL
	}
	if in.Contents != nil {
		props["contents"] = *in.Contents
	}
	return props
}

func (in updateUserInput) props() map[string]interface{} {
	props := map[string]interface{}{}
	if in.DisplayName != nil {
		props["display_name"] = *in.DisplayName
	}
	if in.Email != nil {
		props["email"] = *in.Email
	}
	return props
}

// recipeState is the part of a recipe that must stay consistent across
// writes: the quantity list is index-aligned with the ingredient list.
type recipeState struct {
	Ingredients    []string `json:"ingredients"`
	IngredientsQty []string `json:"ingredients_qty"`
}

func recipeStateOf(n schema.Node) recipeState {
	return recipeState{
		Ingredients:    n.Strings("ingredients"),
		IngredientsQty: n.Strings("ingredients_qty"),
	}
}

func recipeStateValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(recipeState)
	if len(s.Ingredients) != len(s.IngredientsQty) {
		sl.ReportError(s.IngredientsQty, "ingredients_qty", "IngredientsQty", "eqlen", "ingredients")
	}
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
