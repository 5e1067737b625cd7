package store

// schema is applied on every open; all statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		open_price REAL,
		high_price REAL,
		low_price REAL,
		close_price REAL,
		volume REAL,
		source TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_data_symbol_time
		ON price_data(symbol, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_price_data_time
		ON price_data(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_price_data_symbol
		ON price_data(symbol)`,

	`CREATE TABLE IF NOT EXISTS trading_signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		signal_id TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		signal_type TEXT,
		entry_price REAL NOT NULL,
		target_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		confidence REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		current_price REAL,
		activated_at DATETIME,
		closed_at DATETIME,
		close_reason TEXT,
		profit_loss_pct REAL,
		metadata TEXT,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trading_signals_symbol_status
		ON trading_signals(symbol, status)`,
	`CREATE INDEX IF NOT EXISTS idx_trading_signals_created_at
		ON trading_signals(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_trading_signals_signal_type
		ON trading_signals(signal_type)`,

	`CREATE TABLE IF NOT EXISTS technical_indicators (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		indicator_name TEXT NOT NULL,
		value REAL NOT NULL,
		timeframe TEXT,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_indicators_symbol_time
		ON technical_indicators(symbol, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_indicators_name
		ON technical_indicators(indicator_name)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_indicators_time
		ON technical_indicators(timestamp)`,

	`CREATE TABLE IF NOT EXISTS configurations (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT,
		description TEXT,
		created_at DATETIME,
		updated_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS system_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		component TEXT,
		message TEXT NOT NULL,
		details TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_system_logs_time
		ON system_logs(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_system_logs_level
		ON system_logs(level)`,
	`CREATE INDEX IF NOT EXISTS idx_system_logs_component
		ON system_logs(component)`,
}
