package backendgen

import (
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

type formField struct {
	Name        string
	Label       string
	Type        string
	Required    bool
	Placeholder string
	Options     []string
}

type formData struct {
	Component      string
	Table          string
	Fields         []formField
	Validate       bool
	SubmitButton   string
	SuccessMessage string
}

// fieldTypes are the input kinds a form component renders; anything else
// is a text input.
var fieldTypes = map[string]bool{
	"textarea": true, "email": true, "tel": true, "password": true, "checkbox": true, "select": true,
}

const formTemplate = `import { useState } from "react";
import { supabase } from "@/integrations/supabase/client";
import { Button } from "@/components/ui/button";
import { Input } from "@/components/ui/input";
import { Textarea } from "@/components/ui/textarea";
import { Label } from "@/components/ui/label";
import { Checkbox } from "@/components/ui/checkbox";
import { Select, SelectContent, SelectItem, SelectTrigger, SelectValue } from "@/components/ui/select";
import { toast } from "sonner";
import { Loader2 } from "lucide-react";

const initialState = {
{{- range $i, $f := .Fields}}{{if $i}},{{end}}
  {{$f.Name}}: {{if eq $f.Type "checkbox"}}false{{else}}""{{end}}
{{- end}}
};

interface {{.Component}}Props {
  onSuccess?: () => void;
}

export function {{.Component}}({ onSuccess }: {{.Component}}Props) {
  const [isSubmitting, setIsSubmitting] = useState(false);
  const [formData, setFormData] = useState(initialState);
  const [errors, setErrors] = useState<Record<string, string>>({});

  const handleChange = (e: React.ChangeEvent<HTMLInputElement | HTMLTextAreaElement>) => {
    const { name, value } = e.target;
    setFormData(prev => ({ ...prev, [name]: value }));
    if (errors[name]) {
      setErrors(prev => ({ ...prev, [name]: "" }));
    }
  };
{{- if .Validate}}

  const validate = (): boolean => {
    const newErrors: Record<string, string> = {};
{{- range .Fields}}{{if .Required}}
    if (!formData.{{.Name}}) {
      newErrors.{{.Name}} = "{{js .Label}} is required";
    }
{{- end}}{{end}}
{{- range .Fields}}{{if eq .Type "email"}}
    if (formData.{{.Name}} && !/^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(formData.{{.Name}})) {
      newErrors.{{.Name}} = "Please enter a valid email";
    }
{{- end}}{{end}}
{{- range .Fields}}{{if eq .Type "password"}}
    if (formData.{{.Name}} && formData.{{.Name}}.length < 8) {
      newErrors.{{.Name}} = "Password must be at least 8 characters";
    }
{{- end}}{{end}}
    setErrors(newErrors);
    return Object.keys(newErrors).length === 0;
  };
{{- end}}

  const handleSubmit = async (e: React.FormEvent) => {
    e.preventDefault();
{{- if .Validate}}
    if (!validate()) {
      return;
    }
{{- end}}
    setIsSubmitting(true);

    try {
      const { error } = await supabase
        .from("{{.Table}}")
        .insert([formData]);

      if (error) throw error;

      toast.success("{{js .SuccessMessage}}");
      setFormData(initialState);
      onSuccess?.();
    } catch (error) {
      console.error("Form submission error:", error);
      toast.error("Something went wrong. Please try again.");
    } finally {
      setIsSubmitting(false);
    }
  };

  return (
    <form onSubmit={handleSubmit} className="space-y-6">
{{- range .Fields}}
{{- if eq .Type "checkbox"}}
      <div className="flex items-center space-x-2">
        <Checkbox
          id="{{.Name}}"
          name="{{.Name}}"
          checked={formData.{{.Name}}}
          onCheckedChange={(checked) => setFormData(prev => ({ ...prev, {{.Name}}: checked as boolean }))}
        />
        <Label htmlFor="{{.Name}}">{{html .Label}}</Label>
      </div>
{{- else if eq .Type "select"}}
      <div className="space-y-2">
        <Label htmlFor="{{.Name}}">{{html .Label}}{{if .Required}} *{{end}}</Label>
        <Select
          value={formData.{{.Name}}}
          onValueChange={(value) => setFormData(prev => ({ ...prev, {{.Name}}: value }))}
        >
          <SelectTrigger id="{{.Name}}">
            <SelectValue placeholder="{{if .Placeholder}}{{html .Placeholder}}{{else}}Select...{{end}}" />
          </SelectTrigger>
          <SelectContent>
{{- range .Options}}
            <SelectItem value="{{html .}}">{{html .}}</SelectItem>
{{- end}}
          </SelectContent>
        </Select>
      </div>
{{- else if eq .Type "textarea"}}
      <div className="space-y-2">
        <Label htmlFor="{{.Name}}">{{html .Label}}{{if .Required}} *{{end}}</Label>
        <Textarea
          id="{{.Name}}"
          name="{{.Name}}"
{{- if .Placeholder}}
          placeholder="{{html .Placeholder}}"
{{- end}}
{{- if .Required}}
          required
{{- end}}
          value={formData.{{.Name}}}
          onChange={handleChange}
          className="min-h-[100px]"
        />
        {errors.{{.Name}} && <p className="text-sm text-destructive">{errors.{{.Name}}}</p>}
      </div>
{{- else}}
      <div className="space-y-2">
        <Label htmlFor="{{.Name}}">{{html .Label}}{{if .Required}} *{{end}}</Label>
        <Input
          id="{{.Name}}"
          name="{{.Name}}"
          type="{{.Type}}"
{{- if .Placeholder}}
          placeholder="{{html .Placeholder}}"
{{- end}}
{{- if .Required}}
          required
{{- end}}
{{- if eq .Type "password"}}
          minLength={8}
{{- end}}
          value={formData.{{.Name}}}
          onChange={handleChange}
        />
        {errors.{{.Name}} && <p className="text-sm text-destructive">{errors.{{.Name}}}</p>}
      </div>
{{- end}}
{{- end}}

      <Button type="submit" disabled={isSubmitting} className="w-full">
        {isSubmitting ? (
          <>
            <Loader2 className="mr-2 h-4 w-4 animate-spin" />
            Submitting...
          </>
        ) : (
          "{{js .SubmitButton}}"
        )}
      </Button>
    </form>
  );
}
`

var formTmpl = mustParse("form", formTemplate)

// ComponentName is the exported component and file name for a form.
func ComponentName(f website.Form) string {
	base := pascal(jsIdent(f.ID))
	if strings.TrimSpace(f.ID) == "" {
		base = pascal(jsIdent(f.Name))
	}
	return base + "Form"
}

// FormComponent renders a React component that submits f into its table.
func FormComponent(f website.Form) (string, error) {
	data := formData{
		Component:      ComponentName(f),
		Table:          sqlIdent(firstNonEmpty(f.TargetTable, "submissions")),
		Validate:       f.WantsValidation(),
		SubmitButton:   firstNonEmpty(f.SubmitButton, "Submit"),
		SuccessMessage: firstNonEmpty(f.SuccessMessage, "Thanks! We received your submission."),
	}
	for _, fld := range f.Fields {
		t := strings.ToLower(strings.TrimSpace(fld.Type))
		if !fieldTypes[t] {
			t = "text"
		}
		data.Fields = append(data.Fields, formField{
			Name:        jsIdent(fld.Name),
			Label:       firstNonEmpty(fld.Label, fld.Name),
			Type:        t,
			Required:    fld.Required,
			Placeholder: fld.Placeholder,
			Options:     fld.Options,
		})
	}
	return execute(formTmpl, data)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
