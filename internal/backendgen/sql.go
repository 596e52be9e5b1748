package backendgen

import (
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

var sqlTypes = map[string]string{
	"uuid":      "UUID",
	"text":      "TEXT",
	"timestamp": "TIMESTAMP WITH TIME ZONE",
	"boolean":   "BOOLEAN",
	"integer":   "INTEGER",
	"jsonb":     "JSONB",
}

// SQLType maps a spec column type to a Postgres type. Unknown types are
// passed through uppercased.
func SQLType(t string) string {
	if v, ok := sqlTypes[strings.ToLower(strings.TrimSpace(t))]; ok {
		return v
	}
	if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
		return t
	}
	return "TEXT"
}

type sqlTable struct {
	Name        string
	Description string
	Columns     []string
	RLS         bool
	Policy      string
	UpdatedAt   bool
}

type sqlData struct {
	Tables    []sqlTable
	AdminRole bool
	Triggered []string
}

const sqlTemplate = `-- Generated backend schema
{{- if .AdminRole}}

-- Roles used by admin only policies
CREATE TABLE IF NOT EXISTS public.user_roles (
  user_id UUID NOT NULL REFERENCES auth.users(id) ON DELETE CASCADE,
  role TEXT NOT NULL,
  PRIMARY KEY (user_id, role)
);

ALTER TABLE public.user_roles ENABLE ROW LEVEL SECURITY;

CREATE POLICY "Users can view own roles" ON public.user_roles
  FOR SELECT USING (auth.uid() = user_id);

CREATE OR REPLACE FUNCTION public.has_role(_user_id UUID, _role TEXT)
RETURNS BOOLEAN
LANGUAGE sql STABLE SECURITY DEFINER SET search_path = public
AS $$
  SELECT EXISTS (SELECT 1 FROM public.user_roles WHERE user_id = _user_id AND role = _role)
$$;
{{- end}}
{{- range .Tables}}

{{if .Description}}-- {{.Description}}
{{end}}CREATE TABLE IF NOT EXISTS public.{{.Name}} (
{{- range $i, $c := .Columns}}{{if $i}},{{end}}
  {{$c}}
{{- end}}
);
{{- if .RLS}}

ALTER TABLE public.{{.Name}} ENABLE ROW LEVEL SECURITY;
{{- if eq .Policy "user_owned"}}

CREATE POLICY "Users can view own {{.Name}}" ON public.{{.Name}}
  FOR SELECT USING (auth.uid() = user_id);

CREATE POLICY "Users can insert own {{.Name}}" ON public.{{.Name}}
  FOR INSERT WITH CHECK (auth.uid() = user_id);

CREATE POLICY "Users can update own {{.Name}}" ON public.{{.Name}}
  FOR UPDATE USING (auth.uid() = user_id);

CREATE POLICY "Users can delete own {{.Name}}" ON public.{{.Name}}
  FOR DELETE USING (auth.uid() = user_id);
{{- else if eq .Policy "authenticated_only"}}

CREATE POLICY "Authenticated users can view {{.Name}}" ON public.{{.Name}}
  FOR SELECT TO authenticated USING (true);

CREATE POLICY "Authenticated users can insert {{.Name}}" ON public.{{.Name}}
  FOR INSERT TO authenticated WITH CHECK (true);
{{- else if eq .Policy "admin_only"}}

CREATE POLICY "Admins can manage {{.Name}}" ON public.{{.Name}}
  FOR ALL USING (public.has_role(auth.uid(), 'admin'));
{{- else}}

CREATE POLICY "Anyone can view {{.Name}}" ON public.{{.Name}}
  FOR SELECT USING (true);

CREATE POLICY "Authenticated can insert {{.Name}}" ON public.{{.Name}}
  FOR INSERT TO authenticated WITH CHECK (true);
{{- end}}
{{- end}}
{{- end}}
{{- if .Triggered}}

CREATE OR REPLACE FUNCTION public.update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
  NEW.updated_at = now();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql SET search_path = public;
{{- range .Triggered}}

CREATE TRIGGER update_{{.}}_updated_at
  BEFORE UPDATE ON public.{{.}}
  FOR EACH ROW EXECUTE FUNCTION public.update_updated_at_column();
{{- end}}
{{- end}}
`

var sqlTmpl = mustParse("sql", sqlTemplate)

// SQL renders the schema, row level security and triggers for spec.
func SQL(spec website.BackendSpec) (string, error) {
	var data sqlData
	for _, t := range spec.Database.Tables {
		st := sqlTable{
			Name:        sqlIdent(t.Name),
			Description: strings.Join(strings.Fields(t.Description), " "),
			RLS:         t.RLSEnabled(),
			Policy:      policyOf(t),
		}
		cols := t.Columns
		// owner policies need a user_id column
		if st.RLS && st.Policy == website.RLSUserOwned && !t.HasColumn("user_id") {
			cols = append(cols[:len(cols):len(cols)], website.Column{Name: "user_id", Type: "uuid"})
		}
		for _, c := range cols {
			st.Columns = append(st.Columns, columnDef(c))
			if sqlIdent(c.Name) == "updated_at" {
				st.UpdatedAt = true
			}
		}
		if st.RLS && st.Policy == website.RLSAdminOnly {
			data.AdminRole = true
		}
		if st.UpdatedAt {
			data.Triggered = append(data.Triggered, st.Name)
		}
		data.Tables = append(data.Tables, st)
	}
	return execute(sqlTmpl, data)
}

func policyOf(t website.Table) string {
	switch t.RLSPolicy {
	case website.RLSUserOwned, website.RLSAuthenticatedOnly, website.RLSAdminOnly:
		return t.RLSPolicy
	}
	return website.RLSPublicRead
}

func columnDef(c website.Column) string {
	name := sqlIdent(c.Name)
	def := name + " " + SQLType(c.Type)
	switch name {
	case "id":
		switch SQLType(c.Type) {
		case "UUID":
			def += " NOT NULL DEFAULT gen_random_uuid() PRIMARY KEY"
		case "INTEGER", "BIGINT", "SMALLINT":
			def += " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
		default:
			def += " NOT NULL PRIMARY KEY"
		}
	case "created_at", "updated_at":
		def += " NOT NULL DEFAULT now()"
	case "user_id":
		def += " REFERENCES auth.users(id) ON DELETE CASCADE"
		if !c.Nullable {
			def += " NOT NULL"
		}
	default:
		if !c.Nullable {
			def += " NOT NULL"
		}
	}
	return def
}
