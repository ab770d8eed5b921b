// Package catalog provides the immutable lesson and project registries.
// Both tables are fixed at construction time and shared safely across
// turns; per-user progress lives in the session layer, not here.
package catalog

import (
	"fmt"
	"sort"
)

// Lesson is one entry in the learning catalog.
type Lesson struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Level                string   `json:"level"` // beginner, intermediate, advanced
	Content              string   `json:"content"`
	EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
	Prerequisites        []string `json:"prerequisites,omitempty"`
}

// Project is a printable project with its skill requirements.
type Project struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Difficulty         string   `json:"difficulty"` // easy, medium, hard
	EstimatedTimeHours int      `json:"estimated_time_hours"`
	RequiredMaterial   string   `json:"required_material"`
	RequiredSkills     []string `json:"required_skills,omitempty"`
	Instructions       string   `json:"instructions,omitempty"`
}

// Catalog holds the lesson and project tables. Immutable after New.
type Catalog struct {
	lessons  []Lesson
	projects []Project
}

// New returns a catalog over the built-in tables.
func New() *Catalog {
	return &Catalog{lessons: builtinLessons, projects: builtinProjects}
}

// NewWithTables returns a catalog over caller-supplied tables, copied so
// later mutation of the inputs cannot leak in.
func NewWithTables(lessons []Lesson, projects []Project) *Catalog {
	c := &Catalog{
		lessons:  make([]Lesson, len(lessons)),
		projects: make([]Project, len(projects)),
	}
	copy(c.lessons, lessons)
	copy(c.projects, projects)
	return c
}

// Lessons returns lessons filtered by level; an empty level returns all,
// in catalog order.
func (c *Catalog) Lessons(level string) []Lesson {
	out := make([]Lesson, 0, len(c.lessons))
	for _, l := range c.lessons {
		if level == "" || l.Level == level {
			out = append(out, l)
		}
	}
	return out
}

// Lesson returns one lesson by id.
func (c *Catalog) Lesson(id string) (Lesson, error) {
	for _, l := range c.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return Lesson{}, fmt.Errorf("lesson %q not found", id)
}

// Project returns one project by id.
func (c *Catalog) Project(id string) (Project, error) {
	for _, p := range c.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("project %q not found", id)
}

// RecommendFilter narrows project recommendations.
type RecommendFilter struct {
	Difficulty   string
	Material     string
	MaxTimeHours int
	Limit        int
}

// Recommend ranks projects against the user's skills: a project qualifies
// when the user covers all its required skills (or it requires none), and
// higher skill overlap ranks first. When nothing qualifies the easy
// projects are returned so the user always gets a suggestion.
func (c *Catalog) Recommend(skills []string, filter RecommendFilter) []Project {
	limit := filter.Limit
	if limit <= 0 {
		limit = 5
	}

	have := make(map[string]bool, len(skills))
	for _, s := range skills {
		have[s] = true
	}

	type scored struct {
		score   int
		project Project
	}
	var candidates []scored
	for _, p := range c.projects {
		if filter.Difficulty != "" && p.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Material != "" && p.RequiredMaterial != filter.Material {
			continue
		}
		if filter.MaxTimeHours > 0 && p.EstimatedTimeHours > filter.MaxTimeHours {
			continue
		}

		matched := 0
		for _, skill := range p.RequiredSkills {
			if have[skill] {
				matched++
			}
		}
		if matched == len(p.RequiredSkills) {
			candidates = append(candidates, scored{score: matched, project: p})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]Project, 0, limit)
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.project)
	}

	if len(out) == 0 {
		for _, p := range c.projects {
			if len(out) == limit {
				break
			}
			if p.Difficulty == "easy" {
				out = append(out, p)
			}
		}
	}
	return out
}
