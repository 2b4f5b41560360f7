package api

import "github.com/redgrape/thegrid/internal/storyblok"

type StoriesResponse struct {
	Status
	Stories []storyblok.Story `json:"stories,omitempty"`
}

type StoryResponse struct {
	Status
	Story *storyblok.Story `json:"story,omitempty"`
}
