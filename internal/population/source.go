package population

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apbeeper/internal/common"

	"github.com/rs/zerolog/log"
)

type Source interface {
	Fetch(ctx context.Context, region Region) ([]District, error)
}

// Population served as a json list of districts, one url per region
type HTTPSource struct {
	endpoints map[Region]string
	proxy     *common.Proxy
}

func NewHTTPSource(endpoints map[Region]string, timeout time.Duration) *HTTPSource {
	header := map[string]string{"User-Agent": "APBeeper-Bot/1.0"}
	restrictions := []common.Restriction{{Requests: 30, Duration: time.Minute}}
	return &HTTPSource{
		endpoints: endpoints,
		proxy:     common.NewProxy(header, restrictions, timeout),
	}
}

// Districts of the region. For BOTH, the districts of every
// region with data, tagged with their region
func (source *HTTPSource) Fetch(ctx context.Context, region Region) ([]District, error) {

	var districts []District
	for _, server := range region.Servers() {
		data, err := source.fetchServer(ctx, server)
		if errors.Is(err, ErrNoData) && region == RegionBoth {
			continue
		}
		if err != nil {
			return nil, err
		}
		districts = append(districts, data...)
	}
	if len(districts) == 0 {
		return nil, ErrNoData
	}
	return districts, nil
}

func (source *HTTPSource) fetchServer(ctx context.Context, server Region) ([]District, error) {

	url := source.endpoints[server]
	if url == "" {
		return nil, ErrNoData
	}

	// Request
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	data, err := source.proxy.Do(ctx, request, false)
	if err != nil {
		return nil, fmt.Errorf("could not fetch population of %s: %w", server, err)
	}

	// Decode
	var districts []District
	if err := json.Unmarshal(data, &districts); err != nil {
		return nil, fmt.Errorf("population of %s is not correctly formatted: %w", server, err)
	}
	populated := districts[:0]
	for _, district := range districts {
		if district.Population > 0 {
			district.Region = server
			populated = append(populated, district)
		}
	}
	log.Debug().Str("region", string(server)).Int("districts", len(populated)).Msg("Fetched population")
	if len(populated) == 0 {
		return nil, ErrNoData
	}
	return populated, nil
}
