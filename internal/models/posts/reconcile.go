package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mnuddindev/resourcebase/pkg/utils"
)

// ResourceInput is one resource in an edit payload. A nil ID asks for a new
// resource; a nil field keeps the stored value.
type ResourceInput struct {
	ID           *uuid.UUID `json:"id"`
	Name         *string    `json:"name" validate:"omitempty,min=1,max=200"`
	URL          *string    `json:"url" validate:"omitempty,url,max=2048"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	ThumbnailURL *string    `json:"thumbnail_url" validate:"omitempty,max=2048"`
	FaviconURL   *string    `json:"favicon_url" validate:"omitempty,max=2048"`
	SiteName     *string    `json:"site_name" validate:"omitempty,max=200"`
}

// Plan holds the deltas between a post's stored resources and tags and the
// desired ones.
type Plan struct {
	Add        []Resource
	Update     []Resource
	Remove     []uuid.UUID
	AddTags    []string
	RemoveTags []string
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Remove) == 0 &&
		len(p.AddTags) == 0 && len(p.RemoveTags) == 0
}

// Validate rejects new resources that lack a name or URL.
func (p Plan) Validate() error {
	for _, r := range p.Add {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.URL) == "" {
			return utils.NewError(utils.ErrBadRequest.Code, "New resources need a name and url")
		}
	}
	return nil
}

// Reconcile diffs existing against desired. A nil desired slice leaves the
// resource buckets empty, and a nil desiredTags does the same for tags.
//
// Every existing resource lands in exactly one of Update or Remove, and every
// desired resource in exactly one of Add or Update. Repeated ids in desired
// are merged into the first occurrence.
func Reconcile(existing []Resource, existingTags []string, desired *[]ResourceInput, desiredTags *[]string) Plan {
	var plan Plan

	if desired != nil {
		byID := make(map[uuid.UUID]Resource, len(existing))
		for _, r := range existing {
			byID[r.ID] = r
		}

		kept := make(map[uuid.UUID]int, len(*desired))
		for _, in := range *desired {
			if in.ID == nil {
				plan.Add = append(plan.Add, in.apply(Resource{}))
				continue
			}
			cur, ok := byID[*in.ID]
			if !ok {
				plan.Add = append(plan.Add, in.apply(Resource{}))
				continue
			}
			if idx, seen := kept[cur.ID]; seen {
				plan.Update[idx] = in.apply(plan.Update[idx])
				continue
			}
			kept[cur.ID] = len(plan.Update)
			plan.Update = append(plan.Update, in.apply(cur))
		}

		for _, r := range existing {
			if _, ok := kept[r.ID]; !ok {
				plan.Remove = append(plan.Remove, r.ID)
			}
		}
	}

	if desiredTags != nil {
		want := NormalizeTags(*desiredTags)
		have := NormalizeTags(existingTags)
		plan.AddTags = difference(want, have)
		plan.RemoveTags = difference(have, want)
	}

	return plan
}

// apply merges the set fields of in over base. Add entries never carry the
// caller's id.
func (in ResourceInput) apply(base Resource) Resource {
	out := base
	if in.Name != nil {
		out.Name = strings.TrimSpace(*in.Name)
	}
	if in.URL != nil {
		out.URL = strings.TrimSpace(*in.URL)
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		out.ThumbnailURL = *in.ThumbnailURL
	}
	if in.FaviconURL != nil {
		out.FaviconURL = *in.FaviconURL
	}
	if in.SiteName != nil {
		out.SiteName = *in.SiteName
	}
	return out
}

// NormalizeTags lowercases and trims names, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
