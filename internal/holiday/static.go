package holiday

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/tartampluch/go-lunarcal/internal/config"
	"gopkg.in/yaml.v3"
)

//go:embed holidays.yaml
var bundledHolidays []byte

// StaticSource serves a fixed holiday list, used when network access is off.
type StaticSource struct {
	Data []byte // YAML in the Response layout
}

// NewStaticSource returns a source over the bundled holiday list.
func NewStaticSource() *StaticSource {
	return &StaticSource{Data: bundledHolidays}
}

// Fetch decodes Data. It never touches the network.
func (s *StaticSource) Fetch(ctx context.Context) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	var out Response
	if err := yaml.Unmarshal(s.Data, &out); err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, config.ErrStaticHolidays, err)
	}
	return out, nil
}
