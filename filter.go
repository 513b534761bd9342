package pgsqldb

// ComputeUsableTables returns the tables a caller may see: include when it is
// non-empty, otherwise every table of all that is not in ignore.
//
// include and ignore are mutually exclusive, and every name in either must be
// in all. The returned UnknownTableError lists the full missing subset.
func ComputeUsableTables(all, include, ignore TableSet) (TableSet, error) {
	if len(include) > 0 && len(ignore) > 0 {
		return nil, &ConfigError{Msg: "cannot specify both include_tables and ignore_tables"}
	}
	if missing := include.Minus(all); len(missing) > 0 {
		return nil, &UnknownTableError{Kind: "include_tables", Missing: missing.Sorted()}
	}
	if missing := ignore.Minus(all); len(missing) > 0 {
		return nil, &UnknownTableError{Kind: "ignore_tables", Missing: missing.Sorted()}
	}
	if len(include) > 0 {
		return NewTableSet(include.Sorted()...), nil
	}
	return all.Minus(ignore), nil
}
