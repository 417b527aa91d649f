package transform

import (
	"strings"
)

// TypeEntry maps one source dataset type to its destination shape.
type TypeEntry struct {
	Dataset string `yaml:"dataset" json:"dataset"`
	Source  string `yaml:"source" json:"source"`
	Sink    string `yaml:"sink" json:"sink"`
	// Tabular datasets carry schema and table instead of a location.
	Tabular bool `yaml:"tabular" json:"tabular"`
}

// TypeMap is the dataset-type table. Lookups are case-insensitive.
type TypeMap struct {
	entries map[string]TypeEntry
}

var builtinTypes = []struct {
	key   string
	entry TypeEntry
}{
	{"delimitedtext", TypeEntry{"DelimitedText", "DelimitedTextSource", "DelimitedTextSink", false}},
	{"parquet", TypeEntry{"Parquet", "ParquetSource", "ParquetSink", false}},
	{"json", TypeEntry{"Json", "JsonSource", "JsonSink", false}},
	{"avro", TypeEntry{"Avro", "AvroSource", "AvroSink", false}},
	{"orc", TypeEntry{"Orc", "OrcSource", "OrcSink", false}},
	{"xml", TypeEntry{"Xml", "XmlSource", "", false}},
	{"excel", TypeEntry{"Excel", "ExcelSource", "", false}},
	{"binary", TypeEntry{"Binary", "BinarySource", "BinarySink", false}},
	{"azureblob", TypeEntry{"Binary", "BinarySource", "BinarySink", false}},
	{"azuredatalakestorefile", TypeEntry{"Binary", "BinarySource", "BinarySink", false}},
	{"fileshare", TypeEntry{"Binary", "BinarySource", "BinarySink", false}},
	{"azuresqltable", TypeEntry{"AzureSqlTable", "AzureSqlSource", "AzureSqlSink", true}},
	{"azuresqldwtable", TypeEntry{"AzureSqlDWTable", "SqlDWSource", "SqlDWSink", true}},
	{"azuresqlmitable", TypeEntry{"AzureSqlMITable", "SqlMISource", "SqlMISink", true}},
	{"sqlservertable", TypeEntry{"SqlServerTable", "SqlServerSource", "SqlServerSink", true}},
	{"oracletable", TypeEntry{"OracleTable", "OracleSource", "OracleSink", true}},
	{"postgresqltable", TypeEntry{"PostgreSqlTable", "PostgreSqlSource", "", true}},
	{"azurepostgresqltable", TypeEntry{"AzurePostgreSqlTable", "AzurePostgreSqlSource", "AzurePostgreSqlSink", true}},
	{"mysqltable", TypeEntry{"MySqlTable", "MySqlSource", "", true}},
	{"snowflaketable", TypeEntry{"SnowflakeTable", "SnowflakeSource", "SnowflakeSink", true}},
	{"cosmosdbsqlapicollection", TypeEntry{"CosmosDbSqlApiCollection", "CosmosDbSqlApiSource", "CosmosDbSqlApiSink", false}},
	{"azuretable", TypeEntry{"AzureTable", "AzureTableSource", "AzureTableSink", false}},
	{"resttable", TypeEntry{"RestResource", "RestSource", "RestSink", false}},
	{"restresource", TypeEntry{"RestResource", "RestSource", "RestSink", false}},
	{"odatatable", TypeEntry{"ODataResource", "ODataSource", "", false}},
	{"odataresource", TypeEntry{"ODataResource", "ODataSource", "", false}},
}

// NewTypeMap returns the built-in table with overrides applied on top.
func NewTypeMap(overrides map[string]TypeEntry) *TypeMap {
	m := &TypeMap{entries: make(map[string]TypeEntry, len(builtinTypes)+len(overrides))}
	for _, b := range builtinTypes {
		m.entries[b.key] = b.entry
	}
	for k, v := range overrides {
		m.entries[strings.ToLower(k)] = v
	}
	return m
}

// Lookup returns the entry for a source dataset type. When the table has
// no entry the type is carried over unchanged with Source/Sink suffixes and
// ok is false so the caller can warn.
func (m *TypeMap) Lookup(datasetType string) (entry TypeEntry, ok bool) {
	if m != nil {
		if e, found := m.entries[strings.ToLower(datasetType)]; found {
			return e, true
		}
	}
	return TypeEntry{
		Dataset: datasetType,
		Source:  datasetType + "Source",
		Sink:    datasetType + "Sink",
		Tabular: strings.HasSuffix(strings.ToLower(datasetType), "table"),
	}, false
}
