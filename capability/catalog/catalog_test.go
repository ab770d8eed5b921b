package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonsFilteredByLevel(t *testing.T) {
	c := New()

	all := c.Lessons("")
	require.NotEmpty(t, all)

	beginner := c.Lessons("beginner")
	require.NotEmpty(t, beginner)
	for _, l := range beginner {
		assert.Equal(t, "beginner", l.Level)
	}
	assert.Less(t, len(beginner), len(all))
}

func TestLessonByID(t *testing.T) {
	c := New()

	lesson, err := c.Lesson("lesson_004")
	require.NoError(t, err)
	assert.Equal(t, "Fixing warping", lesson.Title)
	assert.Contains(t, lesson.Prerequisites, "lesson_002")

	_, err = c.Lesson("lesson_999")
	assert.Error(t, err)
}

func TestRecommendRanksBySkillCoverage(t *testing.T) {
	c := New()

	projects := c.Recommend([]string{"bed_leveling", "supports"}, RecommendFilter{})

	require.NotEmpty(t, projects)
	// The two-skill match outranks the single-skill one; projects whose
	// requirements the user does not cover are excluded entirely.
	assert.Equal(t, "project_004", projects[0].ID)
	for _, p := range projects {
		for _, skill := range p.RequiredSkills {
			assert.Contains(t, []string{"bed_leveling", "supports"}, skill)
		}
	}
}

func TestRecommendFilters(t *testing.T) {
	c := New()

	projects := c.Recommend(
		[]string{"bed_leveling", "retraction", "temperature", "slicer_settings"},
		RecommendFilter{Difficulty: "easy", MaxTimeHours: 1, Limit: 1},
	)

	require.Len(t, projects, 1)
	assert.Equal(t, "easy", projects[0].Difficulty)
}

func TestRecommendFallsBackToEasyProjects(t *testing.T) {
	c := New()

	projects := c.Recommend(nil, RecommendFilter{})

	require.NotEmpty(t, projects)
	for _, p := range projects {
		if len(p.RequiredSkills) > 0 {
			assert.Equal(t, "easy", p.Difficulty, "a user with no skills only gets easy projects")
		}
	}
}

func TestListLessonsCapability(t *testing.T) {
	handler := NewLessonsCapability(New())

	out, err := handler.Call(context.Background(), map[string]any{"level": "advanced"})
	require.NoError(t, err)

	result, ok := out.(LessonsResult)
	require.True(t, ok)
	require.Equal(t, 1, result.Found)
	assert.Equal(t, "lesson_006", result.Lessons[0].ID)

	out, err = handler.Call(context.Background(), map[string]any{"lesson_id": "lesson_001"})
	require.NoError(t, err)
	result = out.(LessonsResult)
	require.Equal(t, 1, result.Found)
	assert.Contains(t, result.Lessons[0].Content, "FDM")

	_, err = handler.Call(context.Background(), map[string]any{"lesson_id": "nope"})
	assert.Error(t, err)
}

func TestRecommendProjectCapability(t *testing.T) {
	handler := NewRecommendProjectCapability(New())

	out, err := handler.Call(context.Background(), map[string]any{
		"skills":     []any{"precision", "supports", "post_processing"},
		"material":   "PETG",
		"difficulty": "hard",
	})
	require.NoError(t, err)

	result, ok := out.(RecommendResult)
	require.True(t, ok)
	require.Equal(t, 1, result.Found)
	assert.Equal(t, "project_005", result.Projects[0].ID)
}

func TestRecommendProjectCapabilityRejectsBadSkills(t *testing.T) {
	handler := NewRecommendProjectCapability(New())

	_, err := handler.Call(context.Background(), map[string]any{"skills": []any{1, 2}})
	assert.Error(t, err)
}
