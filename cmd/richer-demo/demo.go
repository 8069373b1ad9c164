package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/moi90/richer-progress/progress"
	"github.com/moi90/richer-progress/uirender"

	cli "github.com/urfave/cli/v2"
)

var cmdDemo = &cli.Command{
	Name:  "demo",
	Usage: "run a single-process projects/files/bytes hierarchy",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "projects", Aliases: []string{"p"}, Value: 0, Usage: "number of projects (0 = random)"},
	},
	Action: runDemo,
}

func runDemo(c *cli.Context) error {
	nProjects := c.Int("projects")
	if nProjects <= 0 {
		nProjects = 5 + rand.IntN(11)
	}

	render := uirender.New()

	// Three nesting levels: the expected file count tracks the projects
	// projection, the expected byte count tracks the files projection.
	projects, err := progress.New(
		progress.WithExpectedTasks(int64(nProjects)),
		progress.WithRenderer(render),
		progress.WithLabel("projects"),
	)
	if err != nil {
		return err
	}

	files, err := progress.New(
		progress.WithTaskCountSource(projects),
		progress.WithRenderer(render),
		progress.WithLabel("files (total)"),
	)
	if err != nil {
		return err
	}

	allBytes, err := progress.New(
		progress.WithTaskCountSource(files),
		progress.WithRenderer(render),
		progress.WithLabel("bytes (total)"),
	)
	if err != nil {
		return err
	}

	render.Start()

	defer func() {
		allBytes.Stop()
		files.Stop()
		projects.Stop()
		render.Stop()
	}()

	projects.Start()
	files.Start()
	allBytes.Start()

	for projectID := 0; projectID < nProjects; projectID++ {
		if err := copyProject(projectID, projects, files, allBytes); err != nil {
			fmt.Printf("project %d failed: %s\n", projectID, err)
		}
	}

	if total, ok := allBytes.WorkExpected(); ok {
		fmt.Printf("copied %d of an estimated %d bytes\n", allBytes.WorkCompleted(), total)
	}

	return nil
}

func copyProject(projectID int, projects, files, allBytes *progress.Progress) error {
	project := projects.AddTask(1)
	project.Start()

	// A failed project is cancelled so it stops contributing to the
	// projections; a successful one reports its single unit.
	failed := false

	defer func() {
		if failed {
			project.Cancel()
		} else {
			project.Update(1)
			project.Stop()
		}
	}()

	nFiles := 5 + rand.IntN(11)

	projectFiles := files.AddTask(int64(nFiles), progress.TaskLabel(fmt.Sprintf("files for %d", projectID)))
	projectFiles.Start()

	defer func() {
		if failed {
			projectFiles.Cancel()
		} else {
			projectFiles.Stop()
		}
	}()

	for fileID := range projectFiles.Range(nFiles) {
		nBytes := 500 + rand.IntN(501)

		fileBytes := allBytes.AddTask(int64(nBytes), progress.TaskLabel(fmt.Sprintf("copy %d/%d", projectID, fileID)))
		fileBytes.Start()

		for range fileBytes.Range(nBytes) {
			if projectID%3 == 0 && rand.Float64() < 0.0002 {
				fileBytes.Cancel()
				failed = true

				return fmt.Errorf("simulated copy failure in file %d", fileID)
			}

			time.Sleep(50 * time.Microsecond)
		}

		fileBytes.Stop()
	}

	return nil
}
