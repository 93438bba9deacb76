// Copyright 2024 SceneForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent drives the generate → execute → validate loop that turns a scene
description into an accepted render.

# Overview

An Orchestrator owns one output slot (the directory holding the program file
and its renders) and runs attempts against it until one render passes pixel
validation or the attempt budget is spent. Each attempt moves through a fixed
state machine:

	GENERATE → PATCH → EXECUTE → VALIDATE → ACCEPTED
	    ↑                  │          │
	    └──── FEEDBACK ←───┴──────────┘
	             │
	             └→ EXHAUSTED

Cancellation ends the run in ABORTED. Every other failure, including a
non-recoverable API error (bad key, unknown model), consumes exactly one
attempt and is fed back to the model as a correction built from the original
prompt. Once, the single-shot caller, returns such API errors immediately.

# Components

The loop is assembled from five interfaces, each implemented by a subpackage:

	Generator   agent/generator    chat completion with rate-limit retry
	Sanitizer   agent/sanitizer    ordered repair rules over raw model output
	Executor    agent/execution    supervised engine subprocess with timeout
	Validator   agent/validation   per-image dimension and variance checks
	Synthesizer agent/feedback     correction prompts from rejection reasons

Optional collaborators are attached with options: a persistence.Journal for
run history, an Archiver for per-attempt snapshots, a lock.Locker guarding the
output slot, Metrics and an OpenTelemetry tracer.

# Usage

	orch, err := agent.New(agent.DefaultConfig(), spec, agent.Components{
	    Generator:   gen,
	    Sanitizer:   san,
	    Executor:    sup,
	    Validator:   val,
	    Synthesizer: syn,
	}, agent.WithLogger(logger))
	if err != nil {
	    return err
	}

	report, err := orch.Run(ctx)
	if err != nil {
	    return err // ABORTED, slot busy
	}
	fmt.Println(report.Summary())

Run returns a RunReport in every terminal state except a busy slot. The
report carries the full attempt history, the final reason verbatim and the
conversation turns sent to the model.
*/
package agent
