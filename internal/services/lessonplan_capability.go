package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

// NewLessonPlanCapability wires the lesson-plan resource into the capability
// registry: context from the parent classroom and its students, the four
// generation tools, and the HTML/JSON artifact compilers.
func NewLessonPlanCapability(
	classroomRepo repos.ClassroomRepo,
	profileRepo repos.StudentProfileRepo,
) agent.Capability {
	return agent.Capability{
		Kind: types.KindLessonPlan,
		Action: agent.UIAction{
			Name:    "start",
			Label:   "Start Generator",
			Icon:    "Sparkles",
			Variant: "primary",
			Enabled: func(r agent.Resource) bool { return r.Agent().Status.CanStart() },
		},
		ResolveContext: func(ctx context.Context, r agent.Resource) (map[string]any, error) {
			plan, ok := r.(*types.LessonPlan)
			if !ok {
				return nil, fmt.Errorf("resource %s is not a lesson plan: %w", r.GetID(), apperrors.ErrInvalidArgument)
			}
			rooms, err := classroomRepo.GetByIDs(ctx, nil, []uuid.UUID{plan.ParentResourceID})
			if err != nil {
				return nil, err
			}
			if len(rooms) == 0 || rooms[0] == nil {
				return nil, fmt.Errorf("classroom %s not found", plan.ParentResourceID)
			}
			classroom := rooms[0]

			students, err := profileRepo.ListByClassroomID(ctx, nil, classroom.ID)
			if err != nil {
				return nil, err
			}

			studentSummaries := make([]map[string]any, 0, len(students))
			for _, st := range students {
				studentSummaries = append(studentSummaries, map[string]any{
					"name":           st.StudentName,
					"needs":          st.Needs,
					"learning_style": st.LearningStyle,
				})
			}
			return map[string]any{
				"topic": plan.Topic,
				"classroom": map[string]any{
					"name":        classroom.Name,
					"grade_level": classroom.GradeLevel,
					"subject":     classroom.Subject,
				},
				"students": studentSummaries,
			}, nil
		},
		SystemPrompt:     lessonPlanSystemPrompt,
		BuildTools:       buildLessonPlanTools,
		CompileArtifacts: compileLessonPlanArtifacts,
	}
}

func lessonPlanSystemPrompt(contextObj map[string]any) string {
	ctxJSON, _ := json.MarshalIndent(contextObj, "", "  ")
	var b strings.Builder
	b.WriteString("You are an expert instructional designer creating a lesson plan for a teacher.\n")
	b.WriteString("Use the provided tools to build the plan piece by piece: set a title, add content sections, list learning objectives and set the duration in minutes.\n")
	b.WriteString("Tailor the material to the classroom's grade level and subject, and account for the listed student needs and learning styles.\n")
	b.WriteString("When the plan is complete, reply with a short summary instead of calling more tools.\n\n")
	b.WriteString("Classroom context:\n")
	b.Write(ctxJSON)
	return b.String()
}

func buildLessonPlanTools(r agent.Resource, save agent.SaveFunc) []agent.Tool {
	plan, ok := r.(*types.LessonPlan)
	if !ok {
		return nil
	}
	return []agent.Tool{
		{
			Name:        "setTitle",
			Description: "Set the lesson plan title.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
				},
				"required": []string{"title"},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				title, _ := args["title"].(string)
				if strings.TrimSpace(title) == "" {
					return "", fmt.Errorf("title must not be empty")
				}
				plan.Title = title
				if err := save(ctx); err != nil {
					return "", err
				}
				return "Title set", nil
			},
		},
		{
			Name:        "addSection",
			Description: "Append a content section with a heading and body text.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"heading": map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"heading", "content"},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				heading, _ := args["heading"].(string)
				content, _ := args["content"].(string)
				if strings.TrimSpace(heading) == "" {
					return "", fmt.Errorf("heading must not be empty")
				}
				plan.Content += fmt.Sprintf("\n\n## %s\n\n%s", heading, content)
				if err := save(ctx); err != nil {
					return "", err
				}
				return fmt.Sprintf("Section %q added", heading), nil
			},
		},
		{
			Name:        "addObjective",
			Description: "Add one learning objective to the plan.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"objective": map[string]any{"type": "string"},
				},
				"required": []string{"objective"},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				objective, _ := args["objective"].(string)
				if strings.TrimSpace(objective) == "" {
					return "", fmt.Errorf("objective must not be empty")
				}
				objectives := decodeObjectives(plan.Objectives)
				objectives = append(objectives, objective)
				raw, err := json.Marshal(objectives)
				if err != nil {
					return "", err
				}
				plan.Objectives = datatypes.JSON(raw)
				if err := save(ctx); err != nil {
					return "", err
				}
				return "Objective added", nil
			},
		},
		{
			Name:        "setDuration",
			Description: "Set the total lesson duration in minutes.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"minutes": map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []string{"minutes"},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				minutes, ok := args["minutes"].(float64)
				if !ok || minutes <= 0 {
					return "", fmt.Errorf("minutes must be a positive number")
				}
				plan.Duration = int(minutes)
				if err := save(ctx); err != nil {
					return "", err
				}
				return "Duration set", nil
			},
		},
	}
}

func compileLessonPlanArtifacts(r agent.Resource) ([]agent.ArtifactDraft, error) {
	plan, ok := r.(*types.LessonPlan)
	if !ok {
		return nil, fmt.Errorf("resource %s is not a lesson plan: %w", r.GetID(), apperrors.ErrInvalidArgument)
	}

	objectives := decodeObjectives(plan.Objectives)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(plan.Title))
	b.WriteString("<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto;line-height:1.5}</style>\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(plan.Title))
	if plan.Duration > 0 {
		fmt.Fprintf(&b, "<p><strong>Duration:</strong> %d minutes</p>\n", plan.Duration)
	}
	if len(objectives) > 0 {
		b.WriteString("<h2>Learning Objectives</h2>\n<ul>\n")
		for _, obj := range objectives {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(obj))
		}
		b.WriteString("</ul>\n")
	}
	for _, section := range strings.Split(plan.Content, "\n\n## ") {
		section = strings.TrimSpace(strings.TrimPrefix(section, "## "))
		if section == "" {
			continue
		}
		heading, body, found := strings.Cut(section, "\n\n")
		if !found {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(section))
			continue
		}
		fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(heading))
		for _, para := range strings.Split(body, "\n\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(para))
		}
	}
	b.WriteString("</body>\n</html>\n")

	structured, err := json.MarshalIndent(map[string]any{
		"title":      plan.Title,
		"topic":      plan.Topic,
		"objectives": objectives,
		"duration":   plan.Duration,
		"content":    plan.Content,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	return []agent.ArtifactDraft{
		{FileName: "lesson-plan.html", FileType: string(types.ArtifactHTML), Content: b.String()},
		{FileName: "lesson-plan.json", FileType: string(types.ArtifactJSON), Content: string(structured)},
	}, nil
}

func decodeObjectives(raw datatypes.JSON) []string {
	var objectives []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &objectives)
	}
	return objectives
}
