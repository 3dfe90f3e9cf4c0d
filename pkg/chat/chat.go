/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package chat implements the chat/admin surface of §6: listing and
// cancelling pending goal sets, and the per-repo deploy enablement
// toggle, rendered as Slack messages with interactive Cancel buttons.
package chat

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/sdmcore/engine/internal/sdmerrors"
	"github.com/sdmcore/engine/pkg/cancel"
	"github.com/sdmcore/engine/pkg/store"
)

const deployPreferenceName = "deployEnabled"

// Poster is the narrow slack.Client surface the admin surface needs,
// kept as an interface so tests don't require a live Slack workspace.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Surface is the chat/admin surface of §6.
type Surface struct {
	Client       Poster
	Cancel       *cancel.Service
	Preferences  store.Cache
	Registration string
}

// ListGoalSets renders every pending set with a Cancel button, per §6
// ("list goal sets <sdm-name> -> renders pending sets with a Cancel
// button per set").
func (s *Surface) ListGoalSets(ctx context.Context, channelID string) error {
	sets, err := s.Cancel.List(ctx)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		_, _, err := s.Client.PostMessageContext(ctx, channelID, slack.MsgOptionText(
			fmt.Sprintf("No pending goal sets for %s", s.Registration), false))
		return wrapPost(err)
	}

	var blocks []slack.Block
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Pending goal sets for %s*", s.Registration), false, false),
		nil, nil))
	for _, set := range sets {
		label := fmt.Sprintf("%s @ %s", set.GoalSetID, set.SHA)
		button := slack.NewButtonBlockElement("cancel_goal_set", set.GoalSetID,
			slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false))
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, label, false, false),
			nil, slack.NewAccessory(button)))
	}

	_, _, err = s.Client.PostMessageContext(ctx, channelID, slack.MsgOptionBlocks(blocks...))
	return wrapPost(err)
}

// CancelGoalSets cancels every pending set for this registration, per §6
// ("cancel goal sets <sdm-name> -> cancels all pending sets").
func (s *Surface) CancelGoalSets(ctx context.Context, channelID string) error {
	n, err := s.Cancel.CancelAll(ctx)
	if err != nil {
		return err
	}
	_, _, err = s.Client.PostMessageContext(ctx, channelID, slack.MsgOptionText(
		fmt.Sprintf("Canceled %d pending goal set(s) for %s", n, s.Registration), false))
	return wrapPost(err)
}

// HandleCancelButton reacts to a "cancel_goal_set" button click, by its
// action value (the goal set id). It replies in channelID either way.
func (s *Surface) HandleCancelButton(ctx context.Context, channelID, goalSetID string) error {
	found, err := s.Cancel.CancelOne(ctx, goalSetID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Canceled goal set %s", goalSetID)
	if !found {
		text = fmt.Sprintf("Goal set %s is no longer pending", goalSetID)
	}
	_, _, err = s.Client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return wrapPost(err)
}

// EnableDeploy / DisableDeploy toggle the per-repo deploy enablement flag
// (§6 "enable deploy" / "disable deploy").
func (s *Surface) EnableDeploy(ctx context.Context, repoKey string) error {
	return s.setDeployPreference(ctx, repoKey, "true")
}

func (s *Surface) DisableDeploy(ctx context.Context, repoKey string) error {
	return s.setDeployPreference(ctx, repoKey, "false")
}

func (s *Surface) setDeployPreference(ctx context.Context, repoKey, value string) error {
	if err := s.Preferences.SetPreference(ctx, repoKey, deployPreferenceName, value); err != nil {
		return sdmerrors.Wrap(sdmerrors.KindTransient, err, "chat: setting deploy preference")
	}
	return nil
}

// DeployEnabled reports whether repoKey's deploy goals are enabled.
// Absent preference defaults to enabled, matching the teacher's general
// default-on stance for unconfigured toggles.
func (s *Surface) DeployEnabled(ctx context.Context, repoKey string) (bool, error) {
	value, ok, err := s.Preferences.GetPreference(ctx, repoKey, deployPreferenceName)
	if err != nil {
		return false, sdmerrors.Wrap(sdmerrors.KindTransient, err, "chat: reading deploy preference")
	}
	if !ok {
		return true, nil
	}
	return value == "true", nil
}

func wrapPost(err error) error {
	if err == nil {
		return nil
	}
	return sdmerrors.Wrap(sdmerrors.KindTransient, err, "chat: posting message")
}
