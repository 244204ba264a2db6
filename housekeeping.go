package main

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type HousekeepingCmd struct {
}

func (c *HousekeepingCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		// delete follow requests that were never answered
		res := tx.Exec(`
			DELETE FROM pending_follow_requests
			WHERE created_at < ?
		`, time.Now().AddDate(0, 0, -30))
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "stale pending follow requests")

		// delete refresh requests that have exhausted their attempts
		res = tx.Exec(`
			DELETE FROM actor_refresh_requests
			WHERE attempts >= 3
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "exhausted actor refresh requests")

		// delete mentions and attachments whose status is gone
		res = tx.Exec(`
			DELETE FROM status_mentions
			WHERE status_id NOT IN (SELECT id FROM statuses)
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "orphaned status mentions")

		res = tx.Exec(`
			DELETE FROM status_attachments
			WHERE status_id NOT IN (SELECT id FROM statuses)
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "orphaned status attachments")

		// delete remote Person and Service actors that have no statuses
		// and no follow edges in either direction
		res = tx.Exec(`
			DELETE FROM actors
			WHERE id IN (
				SELECT id FROM actors
				WHERE type IN ('Person', 'Service')
				AND id NOT IN (SELECT actor_id FROM statuses)
				AND id NOT IN (SELECT actor_id FROM relationships WHERE following = true)
				AND id NOT IN (SELECT target_id FROM relationships WHERE following = true)
				AND id NOT IN (SELECT actor_id FROM reactions WHERE favourited = true)
			)
		`)
		if res.Error != nil {
			return res.Error
		}
		fmt.Println("deleted", res.RowsAffected, "actors with no statuses or edges")

		return nil
	})
}
