package email

import "fmt"

// ResetMail builds the password recovery message. The link opens the
// frontend with the raw token in the query string.
func ResetMail(frontendOrigin, token string, ttlMinutes int) (subject, body string) {
	link := fmt.Sprintf("%s/?token=%s", frontendOrigin, token)
	subject = "Anantara - Recuperação de senha"
	body = fmt.Sprintf(`Olá,

Recebemos um pedido para redefinir a sua senha no Anantara.

Acesse o link abaixo para criar uma nova senha:

%s

O link expira em %d minutos e só pode ser usado uma vez. Se você não
pediu a redefinição, ignore este email.

Com carinho,
Equipe Anantara
`, link, ttlMinutes)
	return subject, body
}

func WelcomeMail(name string) (subject, body string) {
	subject = "Bem-vindo(a) ao Anantara"
	body = fmt.Sprintf(`Olá %s,

Sua conta no Anantara foi criada. Este é um espaço de acolhimento e
autoconhecimento; converse quando precisar.

Com carinho,
Equipe Anantara
`, name)
	return subject, body
}

func ReceiptMail(name, planName string, amount float64) (subject, body string) {
	subject = "Anantara - Pagamento confirmado"
	body = fmt.Sprintf(`Olá %s,

Confirmamos o pagamento de R$ %.2f do plano %s. Sua assinatura já está
ativa.

Com carinho,
Equipe Anantara
`, name, amount, planName)
	return subject, body
}
