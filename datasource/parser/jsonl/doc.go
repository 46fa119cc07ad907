// Package jsonl parses points from JSON Lines data. This parser uses https://github.com/tidwall/gjson to process data, and reads attributes from gjson paths.
package jsonl
