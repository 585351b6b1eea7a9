package database

// schemaStatements is applied in order on startup. Statements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		origin TEXT NOT NULL,
		natural_id TEXT,
		features TEXT NOT NULL DEFAULT '[]',
		cred_template TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS entity_credentials (
		entity_id TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
		fields TEXT NOT NULL,
		expiration TIMESTAMP,
		last_used_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS entity_sessions (
		entity_id TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,
		payload TEXT NOT NULL,
		creation TIMESTAMP NOT NULL,
		expiration TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS global_positions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		date TIMESTAMP NOT NULL,
		is_real INTEGER NOT NULL,
		source TEXT NOT NULL,
		import_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_entity_date
		ON global_positions(entity_id, date DESC)`,

	`CREATE TABLE IF NOT EXISTS position_products (
		position_id TEXT NOT NULL REFERENCES global_positions(id) ON DELETE CASCADE,
		product_type TEXT NOT NULL,
		entries TEXT NOT NULL,
		PRIMARY KEY (position_id, product_type)
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		ref TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		type TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		is_real INTEGER NOT NULL,
		product_type TEXT NOT NULL,
		source TEXT NOT NULL,
		net_amount TEXT,
		isin TEXT,
		ticker TEXT,
		market TEXT,
		shares TEXT,
		price TEXT,
		fees TEXT,
		retentions TEXT,
		interest_rate TEXT,
		interests TEXT,
		order_date TIMESTAMP,
		linked_tx TEXT,
		avg_balance TEXT,
		UNIQUE (entity_id, ref)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_entity_date
		ON transactions(entity_id, date DESC)`,

	`CREATE TABLE IF NOT EXISTS historic_entries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		invested TEXT NOT NULL,
		returned TEXT,
		currency TEXT NOT NULL,
		product_type TEXT NOT NULL,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		last_invest_date TIMESTAMP NOT NULL,
		last_tx_date TIMESTAMP NOT NULL,
		last_return_tx TIMESTAMP,
		effective_maturity TEXT,
		net_return TEXT,
		fees TEXT NOT NULL,
		retentions TEXT NOT NULL,
		interests TEXT NOT NULL,
		repaid TEXT NOT NULL,
		state TEXT,
		payload TEXT,
		related_txs TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS periodic_contributions (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		target_name TEXT,
		target_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		since TEXT NOT NULL,
		until TEXT,
		frequency TEXT NOT NULL,
		active INTEGER NOT NULL,
		is_real INTEGER NOT NULL,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS periodic_flows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		frequency TEXT NOT NULL,
		category TEXT,
		enabled INTEGER NOT NULL,
		since TEXT NOT NULL,
		until TEXT,
		icon TEXT,
		linked INTEGER NOT NULL DEFAULT 0,
		max_amount TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS pending_flows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		flow_type TEXT NOT NULL,
		category TEXT,
		enabled INTEGER NOT NULL,
		date TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS real_estate (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS real_estate_flows (
		real_estate_id TEXT NOT NULL REFERENCES real_estate(id) ON DELETE CASCADE,
		periodic_flow_id TEXT NOT NULL REFERENCES periodic_flows(id) ON DELETE CASCADE,
		flow_subtype TEXT NOT NULL,
		description TEXT,
		payload TEXT,
		PRIMARY KEY (real_estate_id, periodic_flow_id)
	)`,

	`CREATE TABLE IF NOT EXISTS crypto_assets (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		native INTEGER NOT NULL,
		contract_address TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS last_fetches (
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		feature TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		PRIMARY KEY (entity_id, feature)
	)`,

	`CREATE TABLE IF NOT EXISTS virtual_data_imports (
		import_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		feature TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		PRIMARY KEY (import_id, entity_id, feature)
	)`,

	`CREATE TABLE IF NOT EXISTS exchange_rates (
		base TEXT NOT NULL,
		quote TEXT NOT NULL,
		rate TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		PRIMARY KEY (base, quote)
	)`,
}
