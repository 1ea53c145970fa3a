package tracker

import (
	"strings"

	"reelforge/types"
)

// stageOrder lists the pipeline in the order a job moves through it.
var stageOrder = []types.PipelineStage{
	types.StageQueued,
	types.StageAnalyzing,
	types.StageRewriting,
	types.StageVoice,
	types.StageAssembling,
	types.StageRendering,
	types.StageSubtitleBurn,
	types.StageUpload,
	types.StageValidate,
	types.StageCompleted,
}

var stageWeights = map[types.PipelineStage]int{
	types.StageQueued:       0,
	types.StageAnalyzing:    10,
	types.StageRewriting:    20,
	types.StageVoice:        35,
	types.StageAssembling:   50,
	types.StageRendering:    70,
	types.StageSubtitleBurn: 80,
	types.StageUpload:       90,
	types.StageValidate:     95,
	types.StageCompleted:    100,
	types.StageFailed:       0,
}

// rawStages maps backend stage and status names onto pipeline stages.
var rawStages = map[string]types.PipelineStage{
	"queued":  types.StageQueued,
	"pending": types.StageQueued,
	"waiting": types.StageQueued,

	"analyzing": types.StageAnalyzing,
	"analysis":  types.StageAnalyzing,
	"analyze":   types.StageAnalyzing,

	"rewriting": types.StageRewriting,
	"rewrite":   types.StageRewriting,
	"scripting": types.StageRewriting,

	"voice":     types.StageVoice,
	"voiceover": types.StageVoice,
	"tts":       types.StageVoice,

	"assembling":  types.StageAssembling,
	"assembly":    types.StageAssembling,
	"compositing": types.StageAssembling,
	"processing":  types.StageAssembling,

	"rendering": types.StageRendering,
	"render":    types.StageRendering,
	"encoding":  types.StageRendering,

	"subtitle-burn": types.StageSubtitleBurn,
	"subtitles":     types.StageSubtitleBurn,
	"captions":      types.StageSubtitleBurn,

	"upload":    types.StageUpload,
	"uploading": types.StageUpload,

	"validate":   types.StageValidate,
	"validating": types.StageValidate,
	"validation": types.StageValidate,

	"completed": types.StageCompleted,
	"complete":  types.StageCompleted,
	"done":      types.StageCompleted,
	"success":   types.StageCompleted,
	"succeeded": types.StageCompleted,

	"failed":    types.StageFailed,
	"failure":   types.StageFailed,
	"error":     types.StageFailed,
	"errored":   types.StageFailed,
	"cancelled": types.StageFailed,
}

// TranslateStage maps a raw backend name to a pipeline stage.
func TranslateStage(raw string) (types.PipelineStage, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	s, ok := rawStages[key]
	return s, ok
}

// StageWeight returns the completion weight (0-100) of a stage.
func StageWeight(s types.PipelineStage) int {
	return stageWeights[s]
}

func stageIndex(s types.PipelineStage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// eventStage picks the stage an event reports. Terminal statuses win over
// the stage name; otherwise the more specific stage name is used.
func eventStage(ev types.StatusEvent) (types.PipelineStage, bool) {
	status, statusOK := TranslateStage(ev.Status)
	if statusOK && status.Terminal() {
		return status, true
	}
	if stage, ok := TranslateStage(ev.StageName); ok {
		return stage, true
	}
	return status, statusOK
}
