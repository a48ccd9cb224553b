package sqlgen

import "snowcraft/internal/project"

// stmtTemplate is one statement of a kind's DDL batch. A non-empty 'when'
// gates the statement on the presence of the named parameter.
type stmtTemplate struct {
	text string
	when string
}

// kindDefaults supplies parameter defaults per entity kind so the templates
// below can reference them unconditionally. Genuinely required fields have
// no default; referencing them unset fails the render.
var kindDefaults = map[project.EntityKind]map[string]interface{}{
	project.KindComputePool: {
		"min_nodes":       float64(1),
		"max_nodes":       float64(1),
		"instance_family": "CPU_X64_XS",
		"auto_resume":     true,
		"comment":         "",
	},
	project.KindService: {
		"min_instances": float64(1),
		"max_instances": float64(1),
		"comment":       "",
	},
	project.KindStage: {
		"comment": "",
	},
	project.KindPackage: {
		"distribution": "INTERNAL",
		"stage_schema": "stage_content",
		"stage_name":   "app_src",
		"comment":      "",
	},
	project.KindApplication: {
		"debug_mode": false,
		"comment":    "",
	},
	project.KindFunction: {
		"language": "SQL",
		"args":     []interface{}{},
	},
	project.KindProcedure: {
		"language":   "SQL",
		"execute_as": "CALLER",
		"args":       []interface{}{},
	},
	project.KindGeneric: {},
}

var kindTemplates = map[project.EntityKind][]stmtTemplate{
	project.KindComputePool: {
		{text: `CREATE COMPUTE POOL IF NOT EXISTS {{ name }}
  MIN_NODES = {{ min_nodes }}
  MAX_NODES = {{ max_nodes }}
  INSTANCE_FAMILY = {{ instance_family }}
  AUTO_RESUME = {{ auto_resume }}{% if comment %}
  COMMENT = '{{ comment }}'{% endif %}`},
	},

	project.KindService: {
		{text: `CREATE SERVICE IF NOT EXISTS {{ name }}
  IN COMPUTE POOL {{ compute_pool }}
  FROM SPECIFICATION $$
{{ specification }}
$$
  MIN_INSTANCES = {{ min_instances }}
  MAX_INSTANCES = {{ max_instances }}{% if comment %}
  COMMENT = '{{ comment }}'{% endif %}`},
		{when: "grants", text: `{% for g in grants %}GRANT {{ g.privilege }} ON SERVICE {{ name }} TO ROLE {{ g.role }};
{% endfor %}`},
	},

	project.KindStage: {
		{text: `CREATE STAGE IF NOT EXISTS {{ name }}{% if comment %}
  COMMENT = '{{ comment }}'{% endif %}`},
	},

	project.KindPackage: {
		{text: `CREATE APPLICATION PACKAGE IF NOT EXISTS {{ name }}
  DISTRIBUTION = {{ distribution }}{% if comment %}
  COMMENT = '{{ comment }}'{% endif %}`},
		{text: `CREATE SCHEMA IF NOT EXISTS {{ name }}.{{ stage_schema }}`},
		{text: `CREATE STAGE IF NOT EXISTS {{ name }}.{{ stage_schema }}.{{ stage_name }}`},
	},

	project.KindApplication: {
		{text: `CREATE APPLICATION IF NOT EXISTS {{ name }}
  FROM APPLICATION PACKAGE {{ source }}
  DEBUG_MODE = {{ debug_mode }}{% if comment %}
  COMMENT = '{{ comment }}'{% endif %}`},
	},

	project.KindFunction: {
		{text: `CREATE OR REPLACE FUNCTION {{ name }}({% for arg in args %}{{ arg.name }} {{ arg.type }}{{ ", " if not loop.last }}{% endfor %})
  RETURNS {{ returns }}
  LANGUAGE {{ language }}
AS
$$
{{ body }}
$$`},
	},

	project.KindProcedure: {
		{text: `CREATE OR REPLACE PROCEDURE {{ name }}({% for arg in args %}{{ arg.name }} {{ arg.type }}{{ ", " if not loop.last }}{% endfor %})
  RETURNS {{ returns }}
  LANGUAGE {{ language }}
  EXECUTE AS {{ execute_as }}
AS
$$
{{ body }}
$$`},
	},
}
