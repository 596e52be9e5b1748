package backendgen

import (
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

type edgeData struct {
	Name         string
	Handler      string
	Description  string
	Method       string
	RequiresAuth bool
	Table        string
	Owned        bool
	Required     []string
}

const submitTemplate = `import { serve } from "https://deno.land/std@0.168.0/http/server.ts";
import { createClient } from "https://esm.sh/@supabase/supabase-js@2";

const corsHeaders = {
  "Access-Control-Allow-Origin": "*",
  "Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
};

const requiredFields: string[] = [{{range $i, $f := .Required}}{{if $i}}, {{end}}"{{js $f}}"{{end}}];

const json = (body: unknown, status = 200) =>
  new Response(JSON.stringify(body), {
    status,
    headers: { ...corsHeaders, "Content-Type": "application/json" },
  });

serve(async (req) => {
  if (req.method === "OPTIONS") {
    return new Response(null, { headers: corsHeaders });
  }

  try {
    const supabase = createClient(
      Deno.env.get("SUPABASE_URL")!,
      Deno.env.get("SUPABASE_SERVICE_ROLE_KEY")!,
    );

    const body = await req.json();
    if (!body || typeof body !== "object" || Object.keys(body).length === 0) {
      return json({ error: "Request body is required" }, 400);
    }

    const missing = requiredFields.filter((f) => body[f] === undefined || body[f] === null || body[f] === "");
    if (missing.length > 0) {
      return json({ error: "Missing required fields: " + missing.join(", ") }, 400);
    }

    if (body.email && !/^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(body.email)) {
      return json({ error: "Invalid email format" }, 400);
    }

    const { data, error } = await supabase
      .from("{{.Table}}")
      .insert([{ ...body, created_at: new Date().toISOString() }])
      .select()
      .single();

    if (error) {
      console.error("Database error:", error);
      return json({ error: "Failed to save submission" }, 500);
    }

    console.log("{{js .Name}} stored submission", data.id);
    return json({ success: true, data });
  } catch (error) {
    console.error("Error in {{js .Name}}:", error);
    return json({ error: "Internal server error" }, 500);
  }
});
`

const genericTemplate = `import { serve } from "https://deno.land/std@0.168.0/http/server.ts";
import { createClient, SupabaseClient } from "https://esm.sh/@supabase/supabase-js@2";

const corsHeaders = {
  "Access-Control-Allow-Origin": "*",
  "Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
};

const json = (body: unknown, status = 200) =>
  new Response(JSON.stringify(body), {
    status,
    headers: { ...corsHeaders, "Content-Type": "application/json" },
  });
{{if .Description}}
// {{.Description}}
{{- end}}
async function {{.Handler}}(
  supabase: SupabaseClient,
  req: Request,
  userId: string | null,
): Promise<Response> {
{{- if not .Table}}
  const body = req.method === "GET" ? Object.fromEntries(new URL(req.url).searchParams) : await req.json();
  return json({ success: true, action: "{{js .Name}}", received: body, userId });
{{- else if eq .Method "GET"}}
  let query = supabase.from("{{.Table}}").select("*").order("created_at", { ascending: false }).limit(100);
{{- if .Owned}}
  if (userId) {
    query = query.eq("user_id", userId);
  }
{{- end}}
  const { data, error } = await query;
  if (error) {
    console.error("{{js .Name}} query failed:", error);
    return json({ error: "Failed to load data" }, 500);
  }
  return json({ success: true, data });
{{- else if eq .Method "DELETE"}}
  const id = new URL(req.url).searchParams.get("id");
  if (!id) {
    return json({ error: "id is required" }, 400);
  }
  let query = supabase.from("{{.Table}}").delete().eq("id", id);
{{- if .Owned}}
  if (userId) {
    query = query.eq("user_id", userId);
  }
{{- end}}
  const { error } = await query;
  if (error) {
    console.error("{{js .Name}} delete failed:", error);
    return json({ error: "Failed to delete" }, 500);
  }
  return json({ success: true });
{{- else if or (eq .Method "PUT") (eq .Method "PATCH")}}
  const { id, ...changes } = await req.json();
  if (!id) {
    return json({ error: "id is required" }, 400);
  }
  let query = supabase.from("{{.Table}}").update(changes).eq("id", id);
{{- if .Owned}}
  if (userId) {
    query = query.eq("user_id", userId);
  }
{{- end}}
  const { data, error } = await query.select().single();
  if (error) {
    console.error("{{js .Name}} update failed:", error);
    return json({ error: "Failed to update" }, 500);
  }
  return json({ success: true, data });
{{- else}}
  const body = await req.json();
  const row = {{if .Owned}}userId ? { ...body, user_id: userId } : body{{else}}body{{end}};
  const { data, error } = await supabase.from("{{.Table}}").insert([row]).select().single();
  if (error) {
    console.error("{{js .Name}} insert failed:", error);
    return json({ error: "Failed to save" }, 500);
  }
  return json({ success: true, data }, 201);
{{- end}}
}

serve(async (req) => {
  if (req.method === "OPTIONS") {
    return new Response(null, { headers: corsHeaders });
  }

  try {
    const supabaseUrl = Deno.env.get("SUPABASE_URL")!;
{{- if .RequiresAuth}}
    const authHeader = req.headers.get("Authorization");
    if (!authHeader || !authHeader.startsWith("Bearer ")) {
      return json({ error: "Authorization required" }, 401);
    }
    const supabase = createClient(supabaseUrl, Deno.env.get("SUPABASE_ANON_KEY")!, {
      global: { headers: { Authorization: authHeader } },
    });

    const { data: { user }, error: authError } = await supabase.auth.getUser();
    if (authError || !user) {
      return json({ error: "Invalid authentication" }, 401);
    }
    return await {{.Handler}}(supabase, req, user.id);
{{- else}}
    const supabase = createClient(supabaseUrl, Deno.env.get("SUPABASE_SERVICE_ROLE_KEY")!);
    return await {{.Handler}}(supabase, req, null);
{{- end}}
  } catch (error) {
    console.error("Error in {{js .Name}}:", error);
    return json({ error: "Internal server error" }, 500);
  }
});
`

var (
	submitTmpl  = mustParse("edge-submit", submitTemplate)
	genericTmpl = mustParse("edge-generic", genericTemplate)
)

// IsSubmission reports whether an endpoint receives form posts.
func IsSubmission(e website.Endpoint) bool {
	p := strings.ToLower(e.Path)
	return strings.Contains(p, "submit") || strings.Contains(p, "form")
}

// EdgeFunction renders a function for endpoint e.
func EdgeFunction(e website.Endpoint, spec website.BackendSpec) (string, error) {
	data := edgeData{
		Name:         firstNonEmpty(e.Name, e.Path, "endpoint"),
		Description:  strings.Join(strings.Fields(e.Description), " "),
		Method:       strings.ToUpper(firstNonEmpty(e.Method, "POST")),
		RequiresAuth: e.RequiresAuth,
	}
	data.Handler = "handle" + pascal(jsIdent(data.Name))

	if IsSubmission(e) {
		data.Table = "submissions"
		if f, ok := relatedForm(e, spec.Forms); ok {
			data.Table = sqlIdent(firstNonEmpty(f.TargetTable, "submissions"))
			for _, fld := range f.Fields {
				if fld.Required {
					data.Required = append(data.Required, fld.Name)
				}
			}
		}
		return execute(submitTmpl, data)
	}

	if t, ok := relatedTable(e, spec.Database.Tables); ok {
		data.Table = sqlIdent(t.Name)
		data.Owned = t.HasColumn("user_id")
	}
	return execute(genericTmpl, data)
}

// relatedForm finds the form whose id appears in the endpoint path or name.
func relatedForm(e website.Endpoint, forms []website.Form) (website.Form, bool) {
	for _, f := range forms {
		if f.ID == "" {
			continue
		}
		if strings.Contains(e.Path, f.ID) || strings.Contains(e.Name, f.ID) {
			return f, true
		}
	}
	return website.Form{}, false
}

// relatedTable finds the table named in the endpoint path or name, also
// matching the singular form of a plural table name.
func relatedTable(e website.Endpoint, tables []website.Table) (website.Table, bool) {
	hay := strings.ToLower(e.Path + " " + e.Name)
	for _, t := range tables {
		name := strings.ToLower(t.Name)
		if name == "" {
			continue
		}
		if strings.Contains(hay, name) {
			return t, true
		}
		if one := strings.TrimSuffix(name, "s"); len(one) >= 3 && strings.Contains(hay, one) {
			return t, true
		}
	}
	return website.Table{}, false
}
