// Package pg bootstraps the PostgreSQL connection used by the relational
// session store.
//
// It wraps github.com/jackc/pgx/v5 pooling and github.com/pressly/goose/v3
// migrations behind three calls:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//	    return err
//	}
//
//	health := pg.Healthcheck(pool)
//
// Error classification helpers ([IsNotFoundError], [IsDuplicateKeyError])
// unwrap pgx errors so store code can map them onto its own sentinels.
package pg
