package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusForJobs(t *testing.T) {
	tests := []struct {
		name     string
		jobs     []*AnalysisJob
		expected string
		ok       bool
	}{
		{
			name: "Annotation done, transcription still running",
			jobs: []*AnalysisJob{
				{Kind: JobKindAnnotation, Status: JobStatusCompleted},
				{Kind: JobKindTranscription, Status: JobStatusProcessing},
			},
			expected: SessionStatusProcessing,
			ok:       true,
		},
		{
			name: "Transcription finishes last",
			jobs: []*AnalysisJob{
				{Kind: JobKindAnnotation, Status: JobStatusCompleted},
				{Kind: JobKindTranscription, Status: JobStatusCompleted},
			},
			expected: SessionStatusCompleted,
			ok:       true,
		},
		{
			name:     "Only job failed",
			jobs:     []*AnalysisJob{{Kind: JobKindAnnotation, Status: JobStatusFailed}},
			expected: SessionStatusFailed,
			ok:       true,
		},
		{
			name: "Failure wins once everything finished",
			jobs: []*AnalysisJob{
				{Kind: JobKindAnnotation, Status: JobStatusFailed},
				{Kind: JobKindTranscription, Status: JobStatusCompleted},
			},
			expected: SessionStatusFailed,
			ok:       true,
		},
		{
			name: "Failure reported only after stragglers finish",
			jobs: []*AnalysisJob{
				{Kind: JobKindAnnotation, Status: JobStatusFailed},
				{Kind: JobKindTranscription, Status: JobStatusQueued},
			},
			expected: SessionStatusProcessing,
			ok:       true,
		},
		{
			name:     "Cancelled jobs count as finished",
			jobs:     []*AnalysisJob{{Kind: JobKindAnnotation, Status: JobStatusCancelled}},
			expected: SessionStatusCompleted,
			ok:       true,
		},
		{
			name: "No jobs",
			jobs: nil,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := SessionStatusForJobs(tt.jobs)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, status)
		})
	}
}
