package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Node is a field device attached to a coordinator.
type Node struct {
	ID            int    `json:"id"`
	CoordinatorID int    `json:"coordinatorId"`
	Name          string `json:"name"`
}

// Repository answers membership questions about coordinators and nodes.
type Repository interface {
	// ExistingCoordinators returns the subset of ids that are known.
	ExistingCoordinators(ctx context.Context, ids []int) (map[int]bool, error)
	// NodeOwners maps each known node id to its coordinator, restricted to
	// the given coordinators.
	NodeOwners(ctx context.Context, coordinatorIDs []int) (map[int]int, error)
	// NodesByCoordinator lists every node grouped by coordinator.
	NodesByCoordinator(ctx context.Context) (map[int][]Node, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a membership repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ExistingCoordinators returns which of ids exist.
func (r *SQLiteRepository) ExistingCoordinators(ctx context.Context, ids []int) (map[int]bool, error) {
	found := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query, args := inClause("SELECT id FROM coordinators WHERE id IN", ids)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying coordinators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning coordinator: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating coordinators: %w", err)
	}
	return found, nil
}

// NodeOwners returns node id → coordinator id for nodes under coordinatorIDs.
func (r *SQLiteRepository) NodeOwners(ctx context.Context, coordinatorIDs []int) (map[int]int, error) {
	owners := make(map[int]int)
	if len(coordinatorIDs) == 0 {
		return owners, nil
	}

	query, args := inClause("SELECT id, coordinator_id FROM coordinator_nodes WHERE coordinator_id IN", coordinatorIDs)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var nodeID, coordID int
		if err := rows.Scan(&nodeID, &coordID); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		owners[nodeID] = coordID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return owners, nil
}

// NodesByCoordinator lists all nodes keyed by coordinator. Coordinators
// without nodes appear with an empty slice.
func (r *SQLiteRepository) NodesByCoordinator(ctx context.Context) (map[int][]Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, n.id, n.name
		FROM coordinators c
		LEFT JOIN coordinator_nodes n ON n.coordinator_id = c.id
		ORDER BY c.id, n.id`)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	result := make(map[int][]Node)
	for rows.Next() {
		var coordID int
		var nodeID sql.NullInt64
		var name sql.NullString
		if err := rows.Scan(&coordID, &nodeID, &name); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		if _, ok := result[coordID]; !ok {
			result[coordID] = []Node{}
		}
		if nodeID.Valid {
			result[coordID] = append(result[coordID], Node{
				ID:            int(nodeID.Int64),
				CoordinatorID: coordID,
				Name:          name.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return result, nil
}

func inClause(prefix string, ids []int) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return prefix + " (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}
