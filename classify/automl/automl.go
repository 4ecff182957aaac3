// Package automl adapts the Cloud AutoML Tables batch prediction API to the
// classify.Classifier contract.
package automl

import (
	"context"
	"errors"
	"fmt"

	automlv1beta1 "google.golang.org/api/automl/v1beta1"

	"papervoice/classify"
)

// Classifier submits batch predictions against one deployed AutoML model.
type Classifier struct {
	svc   *automlv1beta1.Service
	model string
}

// New wraps an authenticated AutoML service. The model is the full resource
// name, projects/{project}/locations/{location}/models/{model}.
func New(svc *automlv1beta1.Service, model string) *Classifier {
	return &Classifier{svc: svc, model: model}
}

func (c *Classifier) Name() string { return "automl-tables" }

// Submit starts a batch prediction over the feature CSV. The operation is
// not awaited: AutoML writes tables_1.csv under the output prefix when it
// finishes, and that write is the pipeline's signal.
func (c *Classifier) Submit(ctx context.Context, req classify.Request) (classify.Job, error) {
	call := c.svc.Projects.Locations.Models.BatchPredict(c.model, &automlv1beta1.GoogleCloudAutomlV1beta1BatchPredictRequest{
		InputConfig: &automlv1beta1.GoogleCloudAutomlV1beta1BatchPredictInputConfig{
			GcsSource: &automlv1beta1.GoogleCloudAutomlV1beta1GcsSource{
				InputUris: []string{req.InputURI},
			},
		},
		OutputConfig: &automlv1beta1.GoogleCloudAutomlV1beta1BatchPredictOutputConfig{
			GcsDestination: &automlv1beta1.GoogleCloudAutomlV1beta1GcsDestination{
				OutputUriPrefix: req.OutputPrefix,
			},
		},
	})
	op, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("batch predict %s: %w", req.InputURI, err)
	}
	return &job{svc: c.svc, name: op.Name}, nil
}

type job struct {
	svc  *automlv1beta1.Service
	name string
}

func (j *job) ID() string { return j.name }

func (j *job) Status(ctx context.Context) (classify.JobStatus, error) {
	op, err := j.svc.Projects.Locations.Operations.Get(j.name).Context(ctx).Do()
	if err != nil {
		return classify.JobStatus{}, fmt.Errorf("get operation %s: %w", j.name, err)
	}
	if !op.Done {
		return classify.JobStatus{State: classify.JobRunning}, nil
	}
	if op.Error != nil {
		return classify.JobStatus{
			State: classify.JobFailed,
			Err:   errors.New(op.Error.Message),
		}, nil
	}
	return classify.JobStatus{State: classify.JobDone}, nil
}

var _ classify.Classifier = (*Classifier)(nil)
