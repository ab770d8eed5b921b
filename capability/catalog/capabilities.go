package catalog

import (
	"context"
	"fmt"

	"github.com/printmind/printmind/capability"
)

// LessonsResult is the output of the list_lessons capability.
type LessonsResult struct {
	Level   string   `json:"level,omitempty"`
	Lessons []Lesson `json:"lessons"`
	Found   int      `json:"found"`
}

// RecommendResult is the output of the recommend_project capability.
type RecommendResult struct {
	Projects []Project `json:"projects"`
	Found    int       `json:"found"`
}

// NewLessonsCapability exposes the lesson table as list_lessons. With a
// lesson_id the full lesson content is returned; otherwise the catalog is
// listed, optionally filtered by level.
func NewLessonsCapability(c *Catalog) capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{
				"type":        "string",
				"description": "Filter lessons by level",
				"enum":        []any{"beginner", "intermediate", "advanced"},
			},
			"lesson_id": map[string]any{
				"type":        "string",
				"description": "Return a single lesson with its full content",
			},
		},
	}

	return capability.NewFunc(
		"list_lessons",
		"List the 3D printing lesson catalog, or fetch one lesson by id. Lessons cover printing fundamentals, bed leveling, materials and G-code.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			if id, ok := args["lesson_id"].(string); ok && id != "" {
				lesson, err := c.Lesson(id)
				if err != nil {
					return nil, err
				}
				return LessonsResult{Lessons: []Lesson{lesson}, Found: 1}, nil
			}

			level, _ := args["level"].(string)
			lessons := c.Lessons(level)
			return LessonsResult{Level: level, Lessons: lessons, Found: len(lessons)}, nil
		},
	)
}

// NewRecommendProjectCapability exposes the project table as
// recommend_project, ranking projects by how well the user's skills cover
// each project's requirements.
func NewRecommendProjectCapability(c *Catalog) capability.Capability {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skills": map[string]any{
				"type":        "array",
				"description": "Skills the user already has, e.g. bed_leveling, retraction, supports",
			},
			"difficulty": map[string]any{
				"type":        "string",
				"description": "Restrict recommendations to one difficulty",
				"enum":        []any{"easy", "medium", "hard"},
			},
			"material": map[string]any{
				"type":        "string",
				"description": "Restrict to projects printable with this material",
			},
			"max_time_hours": map[string]any{
				"type":        "integer",
				"description": "Skip projects estimated to take longer than this",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of projects to return (default 5)",
			},
		},
	}

	return capability.NewFunc(
		"recommend_project",
		"Recommend printable projects matched to the user's skills, with optional difficulty, material and time filters.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			skills, err := stringSlice(args["skills"])
			if err != nil {
				return nil, err
			}

			filter := RecommendFilter{}
			filter.Difficulty, _ = args["difficulty"].(string)
			filter.Material, _ = args["material"].(string)
			if raw, ok := args["max_time_hours"].(float64); ok && raw > 0 {
				filter.MaxTimeHours = int(raw)
			}
			if raw, ok := args["limit"].(float64); ok && raw > 0 {
				filter.Limit = int(raw)
			}

			projects := c.Recommend(skills, filter)
			return RecommendResult{Projects: projects, Found: len(projects)}, nil
		},
	)
}

// stringSlice coerces a JSON-decoded array into []string.
func stringSlice(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("skills must be an array of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("skills must be an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
