package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/stentor/pkg/schema"
)

// ProjectsInput is the declared input shape for the projects tool.
type ProjectsInput struct {
	Action      string `json:"action" jsonschema:"required,enum=list,enum=create,description=Operation to perform"`
	Namespace   string `json:"namespace" jsonschema:"required,pattern=^[a-z0-9][a-z0-9_-]*$,maxLength=64,description=Namespace the operation targets"`
	ProjectID   string `json:"project_id,omitempty" jsonschema:"pattern=^[a-z][a-z0-9_-]*$,maxLength=64,description=Project identifier (required for create)"`
	Description string `json:"description,omitempty" jsonschema:"maxLength=256,description=Optional project description"`
}

// ProjectsOutput is the declared output shape for the projects tool.
type ProjectsOutput struct {
	Success     bool     `json:"success" jsonschema:"required,description=Whether the operation succeeded"`
	Total       int      `json:"total,omitempty" jsonschema:"description=Number of projects found"`
	Projects    []string `json:"projects,omitempty" jsonschema:"description=Project names in the namespace"`
	ProjectID   string   `json:"project_id,omitempty" jsonschema:"description=Created project identifier"`
	Path        string   `json:"path,omitempty" jsonschema:"description=Filesystem path of the created project"`
	Description string   `json:"description,omitempty" jsonschema:"description=Project description when provided"`
	Message     string   `json:"message,omitempty" jsonschema:"description=Human-readable result message"`
}

var (
	projectsInputSchema  = schema.MustGenerate[ProjectsInput]()
	projectsOutputSchema = schema.MustGenerate[ProjectsOutput]()
)

// ProjectsTool manages projects as plain directories under a base path,
// partitioned by namespace: <base>/<namespace>/<project>. A small metadata
// file inside each project records creation time and description.
type ProjectsTool struct {
	baseDir string
}

type projectMeta struct {
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

const projectMetaFile = ".project"

func NewProjectsTool(baseDir string) (*ProjectsTool, error) {
	if baseDir == "" {
		baseDir = "./data/projects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project base directory %s: %w", baseDir, err)
	}
	return &ProjectsTool{baseDir: baseDir}, nil
}

func (t *ProjectsTool) GetName() string {
	return "projects"
}

func (t *ProjectsTool) GetDescription() string {
	return "Manage projects: list the projects in a namespace or create a new one"
}

func (t *ProjectsTool) GetSchema() ToolSchema {
	return ToolSchema{
		Input:  projectsInputSchema,
		Output: projectsOutputSchema,
		Metadata: map[string]interface{}{
			"storage": "filesystem",
			"actions": []string{"list", "create"},
		},
	}
}

func (t *ProjectsTool) Run(ctx context.Context, input ToolInput) ToolOutput {
	switch input.Action {
	case "list":
		return t.list(input.Namespace)
	case "create":
		return t.create(input)
	default:
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Unsupported action '%s' (valid: list, create)", input.Action),
		}
	}
}

func (t *ProjectsTool) list(namespace string) ToolOutput {
	if !isSafeName(namespace) {
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Invalid namespace '%s'", namespace),
		}
	}

	names, err := t.readProjects(namespace)
	if err != nil {
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Failed to list projects in namespace '%s': %v", namespace, err),
		}
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "I found %d project(s) in the '%s' namespace:", len(names), namespace)
	for _, name := range names {
		msg.WriteString("\n- ")
		msg.WriteString(name)
	}

	return ToolOutput{
		Success: true,
		Message: msg.String(),
		Payload: map[string]interface{}{
			"total":    len(names),
			"projects": names,
		},
	}
}

func (t *ProjectsTool) create(input ToolInput) ToolOutput {
	namespace, projectID := input.Namespace, input.ProjectID

	if !isSafeName(namespace) {
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Invalid namespace '%s'", namespace),
		}
	}
	if projectID == "" {
		return ToolOutput{Success: false, Message: MsgMissingProjectID}
	}
	if !isSafeName(projectID) {
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Invalid project name '%s'", projectID),
		}
	}

	nsDir := filepath.Join(t.baseDir, namespace)
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Failed to create project '%s': %v", projectID, err),
		}
	}

	projectDir := filepath.Join(nsDir, projectID)
	if err := os.Mkdir(projectDir, 0o755); err != nil {
		if os.IsExist(err) {
			return ToolOutput{
				Success: false,
				Message: fmt.Sprintf("Project '%s' already exists in namespace '%s'", projectID, namespace),
			}
		}
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Failed to create project '%s': %v", projectID, err),
		}
	}

	description, _ := input.Args["description"].(string)
	meta := projectMeta{CreatedAt: time.Now().UTC(), Description: description}
	if err := t.writeMeta(projectDir, meta); err != nil {
		_ = os.RemoveAll(projectDir)
		return ToolOutput{
			Success: false,
			Message: fmt.Sprintf("Failed to create project '%s': %v", projectID, err),
		}
	}

	payload := map[string]interface{}{
		"project_id": projectID,
		"path":       projectDir,
	}
	if description != "" {
		payload["description"] = description
	}

	return ToolOutput{
		Success: true,
		Message: fmt.Sprintf("✅ Successfully created project '%s' in namespace '%s'", projectID, namespace),
		Payload: payload,
	}
}

// readProjects returns the sorted project names under a namespace. A
// missing namespace directory is an empty namespace, not an error.
func (t *ProjectsTool) readProjects(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(t.baseDir, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (t *ProjectsTool) writeMeta(projectDir string, meta projectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectDir, projectMetaFile), data, 0o644)
}

func (t *ProjectsTool) HealthCheck(ctx context.Context) bool {
	if err := os.MkdirAll(t.baseDir, 0o755); err != nil {
		return false
	}
	info, err := os.Stat(t.baseDir)
	return err == nil && info.IsDir()
}

// isSafeName rejects path traversal in user-supplied path segments.
func isSafeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

var _ Tool = (*ProjectsTool)(nil)
