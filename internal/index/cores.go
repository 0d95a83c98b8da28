package index

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
)

type coreStatusResponse struct {
	Status map[string]struct {
		Name string `json:"name"`
	} `json:"status"`
}

// Cores returns the names of the cores hosted by the service, sorted.
func (c *Client) Cores(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("action", "STATUS")
	params.Set("wt", "json")

	var raw coreStatusResponse
	if err := c.get(ctx, KindCores, "admin/cores", params, &raw); err != nil {
		return nil, err
	}
	if raw.Status == nil {
		return nil, spatialerrors.NewIndexError(spatialerrors.CodeDecodeFailed, "core status response has no status section", nil)
	}

	names := make([]string, 0, len(raw.Status))
	for name := range raw.Status {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EnsureCore checks that core exists on the service.
func (c *Client) EnsureCore(ctx context.Context, core string) error {
	if err := requireCore(core); err != nil {
		return err
	}
	names, err := c.Cores(ctx)
	if err != nil {
		return err
	}
	idx := sort.SearchStrings(names, core)
	if idx < len(names) && names[idx] == core {
		return nil
	}
	return spatialerrors.NewIndexError(spatialerrors.CodeCoreNotFound,
		fmt.Sprintf("core %q not found (available: %v)", core, names), nil).
		WithDetails(map[string]interface{}{"core": core})
}
