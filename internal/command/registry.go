package command

import (
	"context"

	"github.com/kballard/go-shellquote"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/orchestrator"
)

// DefaultLogTail is the number of log lines returned by "logs".
const DefaultLogTail = "100"

var (
	paramEnv       = Param{Name: "env", Description: "environment name", Required: true}
	paramComponent = Param{Name: "component", Description: "component name", Required: true}
	paramVersion   = Param{Name: "version", Description: "skeleton version, defaults to the current one"}
)

// registry maps operation names to their handlers. Order is the listing order.
var registry = []Operation{
	{
		Name:        "list-envs",
		Description: "List created environments",
		Run: func(_ context.Context, o *orchestrator.Orchestrator, _ Args) (any, error) {
			return o.ListEnvironments(), nil
		},
	},
	{
		Name:        "show-env",
		Description: "Show an environment and its components",
		Params:      []Param{paramEnv},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.GetEnvironment(a.Get("env"))
		},
	},
	{
		Name:        "list-components",
		Description: "List the components of an environment",
		Params:      []Param{paramEnv, {Name: "kind", Description: "workload or infrastructure"}},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.ListComponents(a.Get("env"), a.Get("kind"))
		},
	},
	{
		Name:        "list-versions",
		Description: "List available skeleton versions",
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, _ Args) (any, error) {
			return o.SkeletonVersions(ctx)
		},
	},
	{
		Name:        "create",
		Description: "Create an environment from a skeleton version",
		Params:      []Param{paramEnv, {Name: "version", Description: "skeleton version", Required: true}},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.CreateEnvironment(ctx, a.Get("env"), a.Get("version"))
		},
	},
	{
		Name:        "provision",
		Description: "Apply infrastructure, create the namespace and deploy all workloads",
		Params:      []Param{paramEnv},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.ProvisionEnvironment(ctx, a.Get("env"))
		},
	},
	{
		Name:        "refresh",
		Description: "Re-template an environment, keeping deployed image tags",
		Params:      []Param{paramEnv, paramVersion},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.RefreshEnvironment(ctx, a.Get("env"), a.Get("version"))
		},
	},
	{
		Name:        "diff",
		Description: "Show what a refresh would change",
		Params:      []Param{paramEnv, paramVersion},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.DiffEnvironment(ctx, a.Get("env"), a.Get("version"))
		},
	},
	{
		Name:        "teardown",
		Description: "Delete the namespace, infrastructure and endpoints of an environment",
		Params:      []Param{paramEnv},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.TeardownEnvironment(ctx, a.Get("env"))
		},
	},
	{
		Name:        "get-image",
		Description: "Show the image of a component",
		Params:      []Param{paramEnv, paramComponent},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.ComponentImage(a.Get("env"), a.Get("component"))
		},
	},
	{
		Name:        "get-image-tag",
		Description: "Print the image tag of a component",
		Params:      []Param{paramEnv, paramComponent},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			image, err := o.ComponentImage(a.Get("env"), a.Get("component"))
			if err != nil {
				return nil, err
			}
			return image.Tag, nil
		},
	},
	{
		Name:        "get-image-name",
		Description: "Print the full image reference of a component",
		Params:      []Param{paramEnv, paramComponent},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			image, err := o.ComponentImage(a.Get("env"), a.Get("component"))
			if err != nil {
				return nil, err
			}
			return image.Image, nil
		},
	},
	{
		Name:        "set-image-tag",
		Description: "Set the image tag of a component and roll it out",
		Params:      []Param{paramEnv, paramComponent, {Name: "tag", Description: "new image tag", Required: true}},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.UpdateComponent(ctx, a.Get("env"), a.Get("component"), a.Get("tag"))
		},
	},
	{
		Name:        "recreate",
		Description: "Delete and recreate the live resource of a component",
		Params:      []Param{paramEnv, paramComponent},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.RecreateComponent(ctx, a.Get("env"), a.Get("component"))
		},
	},
	{
		Name:        "bulk-update-image",
		Description: "Set the tag of an image in every environment that runs it",
		Params: []Param{
			{Name: "image", Description: "image without tag, e.g. registry.example.com/api", Required: true},
			{Name: "tag", Description: "new image tag", Required: true},
		},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.BulkUpdateImage(ctx, a.Get("image"), a.Get("tag"))
		},
	},
	{
		Name:        "status",
		Description: "Show the newest pod of a component",
		Params:      []Param{paramEnv, paramComponent},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.ComponentStatus(ctx, a.Get("env"), a.Get("component"))
		},
	},
	{
		Name:        "logs",
		Description: "Print the logs of the newest pod of a component",
		Params:      []Param{paramEnv, paramComponent, {Name: "tail", Description: "number of lines, 0 for all", Default: DefaultLogTail}},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			tail, err := a.Int64("tail")
			if err != nil {
				return nil, err
			}
			return o.ComponentLogs(ctx, a.Get("env"), a.Get("component"), tail)
		},
	},
	{
		Name:        "create-endpoints",
		Description: "Publish DNS records for the endpoints of an environment",
		Params:      []Param{paramEnv},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.CreateEndpoints(ctx, a.Get("env"))
		},
	},
	{
		Name:        "list-endpoints",
		Description: "List the DNS records of an environment",
		Params:      []Param{paramEnv},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.ListEndpoints(ctx, a.Get("env"))
		},
	},
	{
		Name:        "remove-endpoints",
		Description: "Delete the DNS records of an environment",
		Params:      []Param{paramEnv},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.RemoveEndpoints(ctx, a.Get("env"))
		},
	},
	{
		Name:        "tf",
		Description: "Run a terraform subcommand in the environment directory",
		Params:      []Param{paramEnv, {Name: "args", Description: "terraform arguments, shell quoted", Required: true}},
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			args, err := shellquote.Split(a.Get("args"))
			if err != nil {
				return nil, oerrors.NewValidationError("cannot parse terraform arguments: "+err.Error(), "", "args", "")
			}
			return nil, o.RunTerraform(ctx, a.Get("env"), args)
		},
	},
	{
		Name:        "cluster-envs",
		Description: "List environment namespaces present in the cluster",
		Run: func(ctx context.Context, o *orchestrator.Orchestrator, _ Args) (any, error) {
			return o.ClusterEnvironments(ctx)
		},
	},
	{
		Name:        "task",
		Description: "Show a background task",
		Params:      []Param{{Name: "id", Description: "task id", Required: true}},
		Run: func(_ context.Context, o *orchestrator.Orchestrator, a Args) (any, error) {
			return o.Task(a.Get("id"))
		},
	},
	{
		Name:        "list-tasks",
		Description: "List background tasks",
		Run: func(_ context.Context, o *orchestrator.Orchestrator, _ Args) (any, error) {
			return o.ListTasks(), nil
		},
	},
	{
		Name:        "reload",
		Description: "Rescan the environments directory",
		Run: func(_ context.Context, o *orchestrator.Orchestrator, _ Args) (any, error) {
			return o.Reload()
		},
	},
}
