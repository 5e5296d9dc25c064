package registry

import (
	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/nodes/code"
	"github.com/dagrun/dagrun/pkg/nodes/condition"
	"github.com/dagrun/dagrun/pkg/nodes/httprequest"
	"github.com/dagrun/dagrun/pkg/nodes/input"
	"github.com/dagrun/dagrun/pkg/nodes/loop"
	"github.com/dagrun/dagrun/pkg/nodes/merge"
	"github.com/dagrun/dagrun/pkg/nodes/notification"
	"github.com/dagrun/dagrun/pkg/nodes/output"
	"github.com/dagrun/dagrun/pkg/nodes/process"
	"github.com/dagrun/dagrun/pkg/nodes/switchnode"
	"github.com/dagrun/dagrun/pkg/nodes/trigger"
	"github.com/dagrun/dagrun/pkg/protocol"
)

// NewWithDefaults returns a registry with every built-in node type.
func NewWithDefaults() (*Registry, error) {
	r := New()

	factories := []protocol.ProcessorFactory{
		input.NewFactory(),
		trigger.NewFactory(),
		process.NewFactory(),
		process.NewMediaFactory(models.NodeTypeImage),
		process.NewMediaFactory(models.NodeTypeVideo),
		process.NewMediaFactory(models.NodeTypeAudio),
		code.NewFactory(),
		condition.NewFactory(),
		switchnode.NewFactory(),
		loop.NewFactory(),
		httprequest.NewFactory(),
		merge.NewFactory(),
		output.NewFactory(),
		notification.NewFactory(),
	}

	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}

	return r, nil
}
