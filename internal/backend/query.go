package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
)

// Named collections exposed by the table gateway.
const (
	TableProfiles         = "profiles"
	TableDevices          = "devices"
	TablePets             = "pets"
	TableFeedingSchedules = "feeding_schedules"
	TableFeedingHistory   = "feeding_history"
)

// Query is a filter/order builder over one collection. Row-level security
// applies with the signed-in user's token, or the public key otherwise.
type Query struct {
	client  *Client
	table   string
	filters url.Values
	order   string
	limit   int
}

func (c *Client) From(table string) *Query {
	return &Query{client: c, table: strings.TrimSpace(table), filters: url.Values{}}
}

func (q *Query) Eq(column string, value any) *Query {
	q.filters.Add(column, "eq."+fmt.Sprint(value))
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = column + "." + dir
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) values(columns string) url.Values {
	v := url.Values{}
	for key, vals := range q.filters {
		v[key] = append([]string(nil), vals...)
	}
	if columns != "" {
		v.Set("select", columns)
	}
	if q.order != "" {
		v.Set("order", q.order)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}

// Select decodes matching rows into out, which must point to a slice.
func (q *Query) Select(ctx context.Context, columns string, out any) error {
	if columns == "" {
		columns = "*"
	}
	return q.send(ctx, http.MethodGet, "select", q.values(columns), nil, out)
}

// Insert creates rows and decodes the stored representation into out.
func (q *Query) Insert(ctx context.Context, rows any, out any) error {
	return q.send(ctx, http.MethodPost, "insert", q.values(""), rows, out)
}

// Update patches every row matching the filters.
func (q *Query) Update(ctx context.Context, patch any, out any) error {
	if len(q.filters) == 0 {
		return fmt.Errorf("backend: update on %s without filters", q.table)
	}
	return q.send(ctx, http.MethodPatch, "update", q.values(""), patch, out)
}

// Delete removes every row matching the filters.
func (q *Query) Delete(ctx context.Context) error {
	if len(q.filters) == 0 {
		return fmt.Errorf("backend: delete on %s without filters", q.table)
	}
	return q.send(ctx, http.MethodDelete, "delete", q.values(""), nil, nil)
}

func (q *Query) send(ctx context.Context, method, op string, query url.Values, payload, out any) error {
	if q.table == "" {
		return fmt.Errorf("backend: table name is required")
	}
	c := q.client
	req, err := c.newRequest(ctx, method, restPath+"/"+url.PathEscape(q.table), query, payload)
	if err != nil {
		return err
	}
	if out != nil && method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	s, err := c.GetSession(ctx)
	if err != nil && !IsNetworkError(err) {
		// an expired, unrefreshable session falls back to anonymous access
		s = nil
	} else if err != nil {
		return err
	}
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	return c.do(op+" "+q.table, req, out)
}

// FetchProfile reads the stored profile attributes of a user.
func (c *Client) FetchProfile(ctx context.Context, userID string) (authdomain.Profile, error) {
	var rows []authdomain.Profile
	if err := c.From(TableProfiles).Eq("id", userID).Limit(1).Select(ctx, "id,full_name,avatar_url,role", &rows); err != nil {
		return authdomain.Profile{}, err
	}
	if len(rows) == 0 {
		return authdomain.Profile{}, ErrProfileNotFound
	}
	return rows[0], nil
}
