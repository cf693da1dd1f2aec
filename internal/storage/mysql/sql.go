package mysql

// `key` is reserved; keep it quoted everywhere.
const selectKVSQL = "SELECT v FROM kv WHERE `key` = ?"

const upsertKVSQL = "INSERT INTO kv (`key`, v) VALUES (?, ?)\n" +
	"ON DUPLICATE KEY UPDATE\n" +
	"  v          = VALUES(v),\n" +
	"  updated_at = CURRENT_TIMESTAMP(3)"

const deleteKVSQL = "DELETE FROM kv WHERE `key` = ?"
