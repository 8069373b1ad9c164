package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/moi90/richer-progress/progress"
	"github.com/moi90/richer-progress/remote"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var cmdWorkers = &cli.Command{
	Name:  "workers",
	Usage: "spawn worker processes driving published task handles",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 4, Usage: "number of worker processes"},
		&cli.Int64Flag{Name: "size", Value: 5, Usage: "units of work per task"},
	},
	Action: runWorkers,
}

var cmdWorker = &cli.Command{
	Name:   "worker",
	Hidden: true,
	Usage:  "drive a single task handle (spawned by the workers command)",
	Action: runWorker,
}

func runWorkers(c *cli.Context) error {
	n := c.Int("count")
	size := c.Int64("size")

	reg, err := remote.Default()
	if err != nil {
		return err
	}
	defer remote.Shutdown()

	overall, err := progress.New(progress.WithExpectedTasks(int64(n)))
	if err != nil {
		return err
	}
	defer overall.Stop()

	group := new(errgroup.Group)

	for i := 0; i < n; i++ {
		t := overall.AddTask(size)

		h, err := reg.Publish(t)
		if err != nil {
			return err
		}

		// The handle travels as an argument, the secret out of band
		// through the environment.
		payload, err := json.Marshal(h.Redacted())
		if err != nil {
			return err
		}

		cmd := exec.Command(os.Args[0], "worker", string(payload))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), remote.AuthKeyEnv+"="+reg.Secret())

		group.Go(cmd.Run)
	}

	if err := group.Wait(); err != nil {
		return err
	}

	expected, _ := overall.WorkExpected()

	fmt.Printf("workers done: completed %d of %d expected units\n", overall.WorkCompleted(), expected)

	return nil
}

func runWorker(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: %s worker <handle-json>", os.Args[0])
	}

	var h remote.Handle

	if err := json.Unmarshal([]byte(c.Args().First()), &h); err != nil {
		return err
	}

	h, err := h.WithSecretFromEnv()
	if err != nil {
		return err
	}

	task, err := remote.ResolveTask(h)
	if err != nil {
		return err
	}

	if err := task.Start(); err != nil {
		return err
	}

	size, known, err := task.Expected()
	if err != nil {
		return err
	}
	if !known {
		size = 1
	}

	for range task.Range(int(size)) {
		time.Sleep(10 * time.Millisecond) // Simulate work
	}

	if err := task.Err(); err != nil {
		task.Cancel()

		return err
	}

	return task.Stop()
}
