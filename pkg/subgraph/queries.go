package subgraph

import (
	"context"
	"encoding/json"
	"strconv"
)

const (
	poolsByAdminQuery = `
		query PoolsByAdmin($admin: String!, $lastId: ID!, $limit: Int!) {
			pools(first: $limit, orderBy: id, where: { admin: $admin, id_gt: $lastId }) {
				id
			}
		}
	`

	poolMembersQuery = `
		query PoolMembersPage($pool: String!, $lastId: ID!, $limit: Int!) {
			poolMembers(first: $limit, orderBy: id, where: { pool: $pool, id_gt: $lastId }) {
				id
				account {
					id
				}
			}
		}
	`

	vestingSchedulesQuery = `
		query VestingSchedulesPage($lastId: ID!, $limit: Int!) {
			vestingSchedules(first: $limit, orderBy: id, where: { id_gt: $lastId }) {
				id
				receiver
				flowRate
				endDate
				deletedAt
				failedAt
			}
		}
	`

	delegationsQuery = `
		query DelegationsPage($space: String!, $lastId: ID!, $limit: Int!) {
			delegations(first: $limit, orderBy: id, where: { space: $space, id_gt: $lastId }) {
				id
				delegator
				delegate
				timestamp
			}
		}
	`
)

// Pool is a distribution pool created by the program manager.
type Pool struct {
	ID string `json:"id"`
}

// PoolMember connects a pool to a member account (a locker contract).
type PoolMember struct {
	ID      string `json:"id"`
	Account struct {
		ID string `json:"id"`
	} `json:"account"`
}

// VestingSchedule is a linear vesting stream towards a receiver.
// BigInt fields arrive as decimal strings.
type VestingSchedule struct {
	ID        string `json:"id"`
	Receiver  string `json:"receiver"`
	FlowRate  string `json:"flowRate"`
	EndDate   string `json:"endDate"`
	DeletedAt string `json:"deletedAt"`
	FailedAt  string `json:"failedAt"`
}

// EndDateUnix returns the schedule end as unix seconds, 0 if unset.
func (v VestingSchedule) EndDateUnix() int64 {
	n, _ := strconv.ParseInt(v.EndDate, 10, 64)
	return n
}

// Active reports whether the schedule is still streaming at the given time.
func (v VestingSchedule) Active(nowUnix int64) bool {
	if v.DeletedAt != "" && v.DeletedAt != "0" {
		return false
	}
	if v.FailedAt != "" && v.FailedAt != "0" {
		return false
	}
	return v.EndDateUnix() > nowUnix
}

// Delegation is one delegation edge in a governance space.
type Delegation struct {
	ID        string `json:"id"`
	Delegator string `json:"delegator"`
	Delegate  string `json:"delegate"`
	Timestamp string `json:"timestamp"`
}

// TimestampUnix returns the edge creation time as unix seconds, 0 if unset.
func (d Delegation) TimestampUnix() int64 {
	n, _ := strconv.ParseInt(d.Timestamp, 10, 64)
	return n
}

// Pools returns all distribution pools administered by the given account.
func (c *Client) Pools(ctx context.Context, admin string) []Pool {
	return FetchAll(ctx, c, PagedQuery[Pool]{
		Query:     poolsByAdminQuery,
		Variables: map[string]any{"admin": admin},
		Extract: func(data json.RawMessage) ([]Pool, error) {
			var env struct {
				Pools []Pool `json:"pools"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, err
			}
			return env.Pools, nil
		},
		Cursor: func(p Pool) string { return p.ID },
	})
}

// PoolMembers returns all member records of one pool.
func (c *Client) PoolMembers(ctx context.Context, pool string) []PoolMember {
	return FetchAll(ctx, c, PagedQuery[PoolMember]{
		Query:     poolMembersQuery,
		Variables: map[string]any{"pool": pool},
		Extract: func(data json.RawMessage) ([]PoolMember, error) {
			var env struct {
				PoolMembers []PoolMember `json:"poolMembers"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, err
			}
			return env.PoolMembers, nil
		},
		Cursor: func(m PoolMember) string { return m.ID },
	})
}

// VestingSchedules returns all vesting schedules known to the subgraph.
func (c *Client) VestingSchedules(ctx context.Context) []VestingSchedule {
	return FetchAll(ctx, c, PagedQuery[VestingSchedule]{
		Query: vestingSchedulesQuery,
		Extract: func(data json.RawMessage) ([]VestingSchedule, error) {
			var env struct {
				VestingSchedules []VestingSchedule `json:"vestingSchedules"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, err
			}
			return env.VestingSchedules, nil
		},
		Cursor: func(v VestingSchedule) string { return v.ID },
	})
}

// Delegations returns all delegation edges of a governance space.
func (c *Client) Delegations(ctx context.Context, space string) []Delegation {
	return FetchAll(ctx, c, PagedQuery[Delegation]{
		Query:     delegationsQuery,
		Variables: map[string]any{"space": space},
		Extract: func(data json.RawMessage) ([]Delegation, error) {
			var env struct {
				Delegations []Delegation `json:"delegations"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, err
			}
			return env.Delegations, nil
		},
		Cursor: func(d Delegation) string { return d.ID },
	})
}
