package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists invariants that must hold at every committed state. Each query
// returns the offending rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_status_matches_parties",
			SQL: `WITH counts AS (
                      SELECT a.id, a.status,
                             COUNT(p.id) AS total,
                             COUNT(p.id) FILTER (WHERE p.status = 'signed') AS signed,
                             COUNT(p.id) FILTER (WHERE p.status = 'rejected') AS rejected
                      FROM agreements a
                      LEFT JOIN agreement_parties p ON p.agreement_id = a.id
                      GROUP BY a.id, a.status)
                  SELECT id, status, total, signed, rejected FROM counts
                  WHERE status <> CASE
                      WHEN status = 'rejected' OR rejected > 0 THEN 'rejected'
                      WHEN total = 0 THEN 'draft'
                      WHEN signed = total THEN 'completed'
                      WHEN signed > 0 THEN 'partially_signed'
                      ELSE 'pending'
                  END`,
		},
		{
			Name: "O2_signature_iff_signed",
			SQL: `SELECT p.agreement_id, p.user_id, p.status, s.id AS signature_id
                  FROM agreement_parties p
                  FULL OUTER JOIN signatures s
                    ON s.agreement_id = p.agreement_id AND s.user_id = p.user_id
                  WHERE (p.status = 'signed') IS DISTINCT FROM (s.id IS NOT NULL)`,
		},
		{
			Name: "O3_completed_has_notice",
			SQL: `SELECT a.id FROM agreements a
                  WHERE a.status = 'completed'
                    AND NOT EXISTS (SELECT 1 FROM notify_outbox o
                                    WHERE o.agreement_id = a.id AND o.type = 'completed')`,
		},
		{
			Name: "O4_single_completion",
			SQL: `SELECT agreement_id, payload->>'to' AS email, COUNT(*)
                  FROM notify_outbox WHERE type = 'completed'
                  GROUP BY agreement_id, payload->>'to' HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_creator_not_party",
			SQL: `SELECT p.agreement_id FROM agreement_parties p
                  JOIN agreements a ON a.id = p.agreement_id
                  WHERE p.user_id = a.creator_id`,
		},
		{
			Name: "O6_responded_at_set",
			SQL: `SELECT id FROM agreement_parties
                  WHERE status IN ('signed','rejected') AND responded_at IS NULL`,
		},
		{
			Name: "O7_single_signed_audit",
			SQL: `SELECT agreement_id, user_id, COUNT(*) FROM audit_logs
                  WHERE action = 'signed'
                  GROUP BY agreement_id, user_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O8_audit_append_only",
			SQL: `SELECT 'missing_append_only_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'audit_logs_append_only')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
