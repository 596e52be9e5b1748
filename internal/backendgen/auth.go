package backendgen

import (
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
)

type profileField struct {
	Key   string
	Label string
	Type  string
}

type authData struct {
	Redirect      string
	AllowSignup   bool
	VerifyEmail   bool
	ProfileFields []profileField
}

const loginTemplate = `import { useState } from "react";
import { supabase } from "@/integrations/supabase/client";
import { Button } from "@/components/ui/button";
import { Input } from "@/components/ui/input";
import { Label } from "@/components/ui/label";
import { Card, CardContent, CardDescription, CardHeader, CardTitle } from "@/components/ui/card";
import { toast } from "sonner";
import { Loader2 } from "lucide-react";
import { useNavigate } from "react-router-dom";

interface LoginFormProps {
  onSwitchToSignup?: () => void;
}

export function LoginForm({ onSwitchToSignup }: LoginFormProps) {
  const [email, setEmail] = useState("");
  const [password, setPassword] = useState("");
  const [isLoading, setIsLoading] = useState(false);
  const navigate = useNavigate();

  const handleLogin = async (e: React.FormEvent) => {
    e.preventDefault();
    setIsLoading(true);

    try {
      const { error } = await supabase.auth.signInWithPassword({ email, password });
      if (error) throw error;

      toast.success("Welcome back!");
      navigate("{{js .Redirect}}");
    } catch (error: any) {
      toast.error(error.message || "Failed to sign in");
    } finally {
      setIsLoading(false);
    }
  };

  return (
    <Card className="w-full max-w-md mx-auto">
      <CardHeader>
        <CardTitle>Sign In</CardTitle>
        <CardDescription>Enter your credentials to access your account</CardDescription>
      </CardHeader>
      <CardContent>
        <form onSubmit={handleLogin} className="space-y-4">
          <div className="space-y-2">
            <Label htmlFor="email">Email</Label>
            <Input id="email" type="email" value={email} onChange={(e) => setEmail(e.target.value)} required />
          </div>
          <div className="space-y-2">
            <Label htmlFor="password">Password</Label>
            <Input id="password" type="password" value={password} onChange={(e) => setPassword(e.target.value)} required />
          </div>
          <Button type="submit" className="w-full" disabled={isLoading}>
            {isLoading ? <Loader2 className="h-4 w-4 animate-spin" /> : "Sign In"}
          </Button>
        </form>
{{- if .AllowSignup}}
        <p className="text-center text-sm text-muted-foreground mt-4">
          Don't have an account?{" "}
          <button type="button" onClick={onSwitchToSignup} className="text-primary hover:underline">
            Sign up
          </button>
        </p>
{{- end}}
      </CardContent>
    </Card>
  );
}
`

const signupTemplate = `import { useState } from "react";
import { supabase } from "@/integrations/supabase/client";
import { Button } from "@/components/ui/button";
import { Input } from "@/components/ui/input";
import { Label } from "@/components/ui/label";
import { Card, CardContent, CardDescription, CardHeader, CardTitle } from "@/components/ui/card";
import { toast } from "sonner";
import { Loader2 } from "lucide-react";

interface SignupFormProps {
  onSwitchToLogin?: () => void;
}

const emptyProfile = {
{{- range $i, $f := .ProfileFields}}{{if $i}},{{end}}
  {{$f.Key}}: ""
{{- end}}
};

export function SignupForm({ onSwitchToLogin }: SignupFormProps) {
  const [email, setEmail] = useState("");
  const [password, setPassword] = useState("");
  const [confirmPassword, setConfirmPassword] = useState("");
  const [profile, setProfile] = useState(emptyProfile);
  const [isLoading, setIsLoading] = useState(false);

  const handleSignup = async (e: React.FormEvent) => {
    e.preventDefault();

    if (password !== confirmPassword) {
      toast.error("Passwords do not match");
      return;
    }
    if (password.length < 8) {
      toast.error("Password must be at least 8 characters");
      return;
    }

    setIsLoading(true);
    try {
      const { error } = await supabase.auth.signUp({
        email,
        password,
        options: {
          emailRedirectTo: window.location.origin + "{{js .Redirect}}",
          data: profile,
        },
      });
      if (error) throw error;

      toast.success("{{if .VerifyEmail}}Check your email to confirm your account!{{else}}Account created successfully!{{end}}");
      onSwitchToLogin?.();
    } catch (error: any) {
      toast.error(error.message || "Failed to create account");
    } finally {
      setIsLoading(false);
    }
  };

  return (
    <Card className="w-full max-w-md mx-auto">
      <CardHeader>
        <CardTitle>Create Account</CardTitle>
        <CardDescription>Enter your details to get started</CardDescription>
      </CardHeader>
      <CardContent>
        <form onSubmit={handleSignup} className="space-y-4">
{{- range .ProfileFields}}
          <div className="space-y-2">
            <Label htmlFor="{{.Key}}">{{html .Label}}</Label>
            <Input
              id="{{.Key}}"
              type="{{.Type}}"
              value={profile.{{.Key}}}
              onChange={(e) => setProfile(prev => ({ ...prev, {{.Key}}: e.target.value }))}
              required
            />
          </div>
{{- end}}
          <div className="space-y-2">
            <Label htmlFor="email">Email</Label>
            <Input id="email" type="email" value={email} onChange={(e) => setEmail(e.target.value)} required />
          </div>
          <div className="space-y-2">
            <Label htmlFor="password">Password</Label>
            <Input id="password" type="password" value={password} onChange={(e) => setPassword(e.target.value)} required minLength={8} />
          </div>
          <div className="space-y-2">
            <Label htmlFor="confirmPassword">Confirm Password</Label>
            <Input id="confirmPassword" type="password" value={confirmPassword} onChange={(e) => setConfirmPassword(e.target.value)} required />
          </div>
          <Button type="submit" className="w-full" disabled={isLoading}>
            {isLoading ? <Loader2 className="h-4 w-4 animate-spin" /> : "Create Account"}
          </Button>
        </form>
        <p className="text-center text-sm text-muted-foreground mt-4">
          Already have an account?{" "}
          <button type="button" onClick={onSwitchToLogin} className="text-primary hover:underline">
            Sign in
          </button>
        </p>
      </CardContent>
    </Card>
  );
}
`

const contextTemplate = `import { createContext, useContext, useEffect, useState, ReactNode } from "react";
import type { Session, User } from "@supabase/supabase-js";
import { supabase } from "@/integrations/supabase/client";

interface AuthContextValue {
  user: User | null;
  session: Session | null;
  loading: boolean;
  signOut: () => Promise<void>;
}

const AuthContext = createContext<AuthContextValue | undefined>(undefined);

export function AuthProvider({ children }: { children: ReactNode }) {
  const [session, setSession] = useState<Session | null>(null);
  const [loading, setLoading] = useState(true);

  useEffect(() => {
    const { data: { subscription } } = supabase.auth.onAuthStateChange((_event, next) => {
      setSession(next);
      setLoading(false);
    });
    supabase.auth.getSession().then(({ data }) => {
      setSession(data.session);
      setLoading(false);
    });
    return () => subscription.unsubscribe();
  }, []);

  const signOut = async () => {
    await supabase.auth.signOut();
  };

  return (
    <AuthContext.Provider value={{"{{"}} user: session?.user ?? null, session, loading, signOut {{"}}"}}>
      {children}
    </AuthContext.Provider>
  );
}

export function useAuth() {
  const ctx = useContext(AuthContext);
  if (!ctx) {
    throw new Error("useAuth must be used inside AuthProvider");
  }
  return ctx;
}
`

var (
	loginTmpl   = mustParse("auth-login", loginTemplate)
	signupTmpl  = mustParse("auth-signup", signupTemplate)
	contextTmpl = mustParse("auth-context", contextTemplate)
)

// AuthComponents renders the auth scaffold, or nil when auth is off.
func AuthComponents(cfg *website.AuthConfig) (*website.AuthSetup, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	data := authData{
		Redirect:    firstNonEmpty(cfg.RedirectAfterLogin, "/"),
		AllowSignup: cfg.AllowSignup,
		VerifyEmail: cfg.RequireEmailVerification,
	}
	seen := map[string]bool{}
	for _, f := range cfg.UserProfileFields {
		key := jsIdent(f)
		if seen[key] || key == "email" || key == "password" {
			continue
		}
		seen[key] = true
		data.ProfileFields = append(data.ProfileFields, profileField{
			Key:   key,
			Label: profileLabel(f),
			Type:  profileInputType(key),
		})
	}

	out := &website.AuthSetup{}
	var err error
	if out.LoginComponent, err = execute(loginTmpl, data); err != nil {
		return nil, err
	}
	if cfg.AllowSignup {
		if out.SignupComponent, err = execute(signupTmpl, data); err != nil {
			return nil, err
		}
	}
	if out.AuthContext, err = execute(contextTmpl, data); err != nil {
		return nil, err
	}
	return out, nil
}

func profileLabel(f string) string {
	words := strings.FieldsFunc(f, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	if len(words) == 1 && strings.EqualFold(words[0], "name") {
		return "Full Name"
	}
	return strings.Join(words, " ")
}

func profileInputType(key string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "phone"):
		return "tel"
	case strings.Contains(k, "website") || strings.Contains(k, "url"):
		return "url"
	}
	return "text"
}
